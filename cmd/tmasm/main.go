// Command tmasm assembles target-machine source into an executable image.
//
//	tmasm -o a.out file.s
package main

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/smoynes/elsie/internal/asm"
	"github.com/smoynes/elsie/internal/log"
	"gopkg.in/urfave/cli.v2"
)

func main() {
	logger := log.DefaultLogger()

	app := &cli.App{
		Name:    "tmasm",
		Usage:   "assemble target-machine source into an executable image",
		Version: "v0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "output `file`",
				Value:   "a.out",
			},
			&cli.StringFlag{
				Name:    "charset",
				Aliases: []string{"c"},
				Usage:   "character set for string and char literals (cp437, cp850)",
				Value:   "cp437",
			},
			&cli.StringFlag{
				Name:  "e",
				Usage: "output byte order (little, big)",
				Value: "big",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("debug") {
				log.LogLevel.Set(log.Debug)
			}

			if c.Args().Len() == 0 {
				return cli.Exit("tmasm: no source file given", 1)
			}

			cs, ok := asm.ParseCharset(c.String("charset"))
			if !ok {
				return cli.Exit("tmasm: unknown charset "+c.String("charset"), 1)
			}

			entry := c.Args().First()

			assembler := asm.NewAssembler(entry, openFile, cs)

			switch c.String("e") {
			case "little":
				assembler.ByteOrder = binary.LittleEndian
			case "big":
				assembler.ByteOrder = binary.BigEndian
			default:
				return cli.Exit("tmasm: -e must be little or big", 1)
			}

			logger.Debug("assembling", "entry", entry)

			image, err := assembler.Assemble()
			if err != nil {
				logger.Error("assemble failed", "err", err)
				return cli.Exit(err.Error(), 1)
			}

			out, err := os.Create(c.String("out"))
			if err != nil {
				logger.Error("open failed", "out", c.String("out"), "err", err)
				return cli.Exit(err.Error(), 1)
			}
			defer out.Close()

			if _, err := out.Write(image); err != nil {
				logger.Error("write failed", "out", c.String("out"), "err", err)
				return cli.Exit(err.Error(), 1)
			}

			logger.Info("assembled", "out", c.String("out"), "bytes", len(image))

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func openFile(name string) (io.Reader, error) {
	return os.Open(name)
}
