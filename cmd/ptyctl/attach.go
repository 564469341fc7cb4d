package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/GriffinCanCode/ptyhost/internal/client"
)

// detachKey (Ctrl-]) leaves attach without closing the shell.
const detachKey = 0x1d

// exitError carries the attached shell's exit code out of main.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("shell exited with code %d", e.code) }
func (e *exitError) ExitCode() int { return e.code }

func runAttach(args []string, env *environment) error {
	fs, common := newFlagSet("attach", env)
	create := fs.Bool("create", false, "create the tab first if it does not exist")
	interval := fs.Duration("interval", 50*time.Millisecond, "output poll interval")
	rest, err := parse(fs, args, 1, "TAB_ID [--create]")
	if err != nil {
		return err
	}
	tabID := rest[0]
	c := common.client()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := c.Get(ctx, tabID); err != nil {
		if !client.IsNotFound(err) || !*create {
			return err
		}
		if _, err := c.Create(ctx, client.CreateRequest{ID: tabID}); err != nil {
			return err
		}
	}

	if f, ok := env.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		stdinFd := int(f.Fd())
		oldState, err := term.MakeRaw(stdinFd)
		if err != nil {
			return fmt.Errorf("set terminal raw mode: %w", err)
		}
		defer term.Restore(stdinFd, oldState)

		stopResize := forwardSize(ctx, c, tabID, stdinFd)
		defer stopResize()

		fmt.Fprintf(env.stderr, "attached to %s, Ctrl-] to detach\r\n", tabID)
	}

	err = attach(ctx, c, tabID, env.stdin, env.stdout, *interval)
	if err != nil {
		return err
	}

	info, err := c.Get(context.Background(), tabID)
	if err == nil && info.Exited && info.ExitCode != 0 {
		return &exitError{code: info.ExitCode}
	}
	return nil
}

// forwardSize sends the local window size now and on every SIGWINCH.
func forwardSize(ctx context.Context, c *client.Client, tabID string, fd int) func() {
	send := func() {
		cols, rows, err := term.GetSize(fd)
		if err != nil || rows <= 0 || cols <= 0 {
			return
		}
		c.Resize(ctx, tabID, uint16(rows), uint16(cols))
	}
	send()

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-winch:
				send()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(winch)
		close(done)
	}
}

// attach relays in to the shell and the shell's output to out until the
// shell exits, the detach key is read, or ctx ends. EOF on in stops
// input but output keeps flowing.
func attach(ctx context.Context, c *client.Client, tabID string, in io.Reader, out io.Writer, interval time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 1)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := in.Read(buf)
			if n > 0 {
				chunk := buf[:n]
				i := bytes.IndexByte(chunk, detachKey)
				if i >= 0 {
					chunk = chunk[:i]
				}
				if len(chunk) > 0 {
					if _, werr := c.Write(ctx, tabID, chunk); werr != nil {
						errs <- werr
						return
					}
				}
				if i >= 0 {
					cancel()
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			return err
		case <-ticker.C:
		}

		done, err := drain(ctx, c, tabID, out)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if done {
			return nil
		}
	}
}

// pump prints output until the shell exits or ctx ends.
func pump(ctx context.Context, c *client.Client, tabID string, out io.Writer, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		done, err := drain(ctx, c, tabID, out)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// drain copies one read to out. It reports done once the tab is gone, or
// once the shell has exited and its remaining output is printed.
func drain(ctx context.Context, c *client.Client, tabID string, out io.Writer) (bool, error) {
	o, err := c.Read(ctx, tabID)
	if err != nil {
		return false, err
	}
	if _, err := io.WriteString(out, o.Data); err != nil {
		return false, err
	}
	if !o.Found {
		return true, nil
	}
	if !o.Exited {
		return false, nil
	}
	for o.Data != "" {
		if o, err = c.Read(ctx, tabID); err != nil {
			return true, err
		}
		if _, err := io.WriteString(out, o.Data); err != nil {
			return true, err
		}
	}
	return true, nil
}
