// Command tmvm runs an assembled target-machine image.
//
//	tmvm a.out
package main

import (
	"context"
	"io"
	"os"

	"github.com/smoynes/elsie/internal/log"
	"github.com/smoynes/elsie/internal/tty"
	"github.com/smoynes/elsie/internal/vm"
	"gopkg.in/urfave/cli.v2"
)

func main() {
	logger := log.DefaultLogger()

	app := &cli.App{
		Name:    "tmvm",
		Usage:   "run an assembled target-machine image",
		Version: "v0.1.0",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:  "max-cycles",
				Usage: "abort after `N` cycles (0 = unlimited)",
			},
			&cli.Uint64Flag{
				Name:  "tick-rate",
				Usage: "tick devices every `N` instructions",
				Value: vm.DefaultDeviceTickRate,
			},
			&cli.BoolFlag{
				Name:  "headless",
				Usage: "do not attach an interactive console",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: run(logger),
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func run(logger *log.Logger) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.Bool("debug") {
			log.LogLevel.Set(log.Debug)
		}

		if c.Args().Len() == 0 {
			return cli.Exit("tmvm: no program given", 1)
		}

		image, err := os.ReadFile(c.Args().First())
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		ram := vm.NewMemoryDevice(vm.RAMMin, vm.RAMMax, false)
		if err := vm.LoadImage(ram, image, vm.RAMMin); err != nil {
			return cli.Exit(err.Error(), 1)
		}

		kbd := vm.NewKeyboardDevice(vm.KeyboardMin, vm.KeyboardMax)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := os.Stdout

		var cleanup func()

		if !c.Bool("headless") {
			var (
				writer io.Writer
				ok     bool
			)

			writer, cleanup, ok = tty.WithConsole(ctx, kbd)
			if ok {
				defer cleanup()
			} else {
				writer = out
			}

			console := vm.NewConsoleDevice(vm.ConsoleMin, vm.ConsoleMax, writer)
			bus := vm.NewDefaultBus(ram, console, kbd)

			return runMachine(c, logger, bus)
		}

		console := vm.NewConsoleDevice(vm.ConsoleMin, vm.ConsoleMax, out)
		bus := vm.NewDefaultBus(ram, console, kbd)

		return runMachine(c, logger, bus)
	}
}

func runMachine(c *cli.Context, logger *log.Logger, bus *vm.Bus) error {
	opts := []vm.OptionFn{
		vm.WithBus(bus),
		vm.WithLogger(logger),
		vm.WithDeviceTickRate(c.Uint64("tick-rate")),
	}

	if n := c.Uint64("max-cycles"); n > 0 {
		opts = append(opts, vm.WithMaxCycles(n))
	}

	machine := vm.New(opts...)

	logger.Info("running", "program", c.Args().First())

	if err := machine.Run(-1); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logger.Info("halted", "cycles", machine.Cycles)

	return nil
}
