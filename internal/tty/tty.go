// Package tty adapts the target machine's memory-mapped keyboard and
// console devices to a raw Unix terminal.
package tty

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/smoynes/elsie/internal/vm"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Console is a serial console for the machine, implemented with Unix
// terminal I/O[^1]. Bytes typed at the console are pushed to a
// vm.KeyboardDevice; the console's own output comes from the bus's
// vm.ConsoleDevice, which this type merely supplies a writer for.
//
// [1]: See: tty(4), termios(4).
type Console struct {
	in  *os.File
	out io.Writer
	fd  int

	state *term.State
}

// ErrNoTTY is returned if standard input is not a terminal. In this case,
// raw-mode console I/O is not supported by the host.
var ErrNoTTY = errors.New("console: not a TTY")

// NewConsole creates a Console reading from sin and writing to sout. If sin
// is not a terminal, ErrNoTTY is returned. Callers must call Restore to
// return the terminal to its initial state.
func NewConsole(sin, sout *os.File) (*Console, error) {
	fd := int(sin.Fd())

	if !term.IsTerminal(fd) {
		return nil, ErrNoTTY
	}

	saved, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTTY, err)
	}

	cons := &Console{
		fd:    fd,
		in:    sin,
		out:   sout,
		state: saved,
	}

	if err := cons.setTerminalParams(1, 0); err != nil {
		return nil, err
	}

	return cons, nil
}

// Writer returns the writer the console's framebuffer should be rendered
// to — pass it to vm.NewConsoleDevice.
func (c *Console) Writer() io.Writer { return c.out }

// Restore returns the terminal to its initial state and cancels any
// in-progress read.
func (c *Console) Restore() {
	_ = c.in.SetReadDeadline(time.Now())
	_ = term.Restore(c.fd, c.state)
}

func (c *Console) setTerminalParams(vmin, vtime byte) error {
	_ = syscall.SetNonblock(c.fd, true)

	termIO, err := unix.IoctlGetTermios(c.fd, getTermiosIoctl)
	if err != nil {
		return err
	}

	termIO.Cc[unix.VMIN] = vmin
	termIO.Cc[unix.VTIME] = vtime

	if err := unix.IoctlSetTermios(c.fd, setTermiosIoctl, termIO); err != nil {
		return err
	}

	_ = c.in.SetReadDeadline(time.Time{})

	return nil
}

// ServeKeyboard reads bytes from the terminal and pushes each one to kbd,
// until ctx is cancelled or the read fails. It blocks and is meant to run
// in its own goroutine.
func (c *Console) ServeKeyboard(ctx context.Context, kbd *vm.KeyboardDevice) error {
	buf := bufio.NewReader(c.in)

	_ = syscall.SetNonblock(c.fd, false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		b, err := buf.ReadByte()
		if err != nil {
			return err
		}

		kbd.Push(b)
	}
}

// WithConsole starts a Console over the standard streams, wires its
// keyboard feed to kbd, and returns a writer for the console device plus a
// cleanup function that restores the terminal and stops the feed. If
// standard input is not a terminal, ok is false and the caller should fall
// back to running headless.
func WithConsole(ctx context.Context, kbd *vm.KeyboardDevice) (out io.Writer, cleanup func(), ok bool) {
	console, err := NewConsole(os.Stdin, os.Stdout)
	if err != nil {
		return os.Stdout, func() {}, false
	}

	ctx, cancel := context.WithCancel(ctx)

	go func() {
		_ = console.ServeKeyboard(ctx, kbd)
	}()

	return console.Writer(), func() {
		cancel()
		console.Restore()
	}, true
}
