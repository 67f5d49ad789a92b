// Package tty_test tries to test ttys.
//
// The test is skipped when stdin is not a terminal (ErrNoTTY). Notably, this
// includes when run with "go test" because it redirects tests' standard
// input/output streams. You can test it by building a test binary and
// running it directly:
//
//	$ go test -c && ./tty.test
package tty_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/smoynes/elsie/internal/tty"
	"github.com/smoynes/elsie/internal/vm"
)

func TestConsoleServesKeyboard(t *testing.T) {
	console, err := tty.NewConsole(os.Stdin, os.Stdout)
	if errors.Is(err, tty.ErrNoTTY) {
		t.Skipf("error: %s", err)
	}

	if err != nil {
		t.Fatalf("NewConsole: %s", err)
	}

	defer console.Restore()

	kbd := vm.NewKeyboardDevice(vm.KeyboardMin, vm.KeyboardMax)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- console.ServeKeyboard(ctx, kbd)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("ServeKeyboard: %s", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ServeKeyboard did not return after context timeout")
	}
}
