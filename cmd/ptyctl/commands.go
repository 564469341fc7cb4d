package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/pflag"

	"github.com/GriffinCanCode/ptyhost/internal/client"
	"github.com/GriffinCanCode/ptyhost/internal/pty"
)

const (
	serverEnv        = "PTYHOST_SERVER"
	defaultServerURL = "http://127.0.0.1:8000"
)

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	server  string
	timeout time.Duration
}

func newFlagSet(name string, env *environment) (*pflag.FlagSet, *commonFlags) {
	common := &commonFlags{}
	server := os.Getenv(serverEnv)
	if server == "" {
		server = defaultServerURL
	}

	fs := pflag.NewFlagSet("ptyctl "+name, pflag.ContinueOnError)
	fs.SetOutput(env.stderr)
	fs.StringVarP(&common.server, "server", "s", server, "ptyhost server URL")
	fs.DurationVar(&common.timeout, "timeout", client.DefaultTimeout, "per-request timeout")
	return fs, common
}

func (f *commonFlags) client() *client.Client {
	return client.New(strings.TrimRight(f.server, "/"), client.Options{Timeout: f.timeout})
}

// parse parses args and checks the positional count.
func parse(fs *pflag.FlagSet, args []string, positional int, usage string) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	rest := fs.Args()
	if len(rest) < positional {
		return nil, fmt.Errorf("usage: %s %s", fs.Name(), usage)
	}
	return rest, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runCreate(args []string, env *environment) error {
	fs, common := newFlagSet("create", env)
	id := fs.String("id", "", "tab id (generated when empty)")
	rows := fs.Uint16("rows", 0, "terminal rows (server default when zero)")
	cols := fs.Uint16("cols", 0, "terminal columns (server default when zero)")
	asJSON := fs.Bool("json", false, "print the full session description")
	if _, err := parse(fs, args, 0, "[--id ID] [--rows N] [--cols N]"); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	info, err := common.client().Create(ctx, client.CreateRequest{ID: *id, Rows: *rows, Cols: *cols})
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(env.stdout, info)
	}
	fmt.Fprintln(env.stdout, info.ID)
	return nil
}

func runWrite(args []string, env *environment) error {
	fs, common := newFlagSet("write", env)
	fromStdin := fs.Bool("stdin", false, "read the input from stdin")
	enter := fs.BoolP("enter", "e", false, "append a carriage return")
	rest, err := parse(fs, args, 1, "TAB_ID [DATA...] [--stdin] [--enter]")
	if err != nil {
		return err
	}

	var data []byte
	if *fromStdin {
		if data, err = io.ReadAll(env.stdin); err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	} else {
		data = []byte(strings.Join(rest[1:], " "))
	}
	if *enter {
		data = append(data, '\r')
	}

	ctx, cancel := signalContext()
	defer cancel()
	n, err := common.client().Write(ctx, rest[0], data)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stderr, "wrote %d bytes\n", n)
	return nil
}

func runRead(args []string, env *environment) error {
	fs, common := newFlagSet("read", env)
	follow := fs.BoolP("follow", "f", false, "keep printing output until the shell exits")
	interval := fs.Duration("interval", 100*time.Millisecond, "poll interval with --follow")
	rest, err := parse(fs, args, 1, "TAB_ID [--follow]")
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	c := common.client()
	if !*follow {
		out, err := c.Read(ctx, rest[0])
		if err != nil {
			return err
		}
		_, err = io.WriteString(env.stdout, out.Data)
		return err
	}
	return pump(ctx, c, rest[0], env.stdout, *interval)
}

func runResize(args []string, env *environment) error {
	fs, common := newFlagSet("resize", env)
	rows := fs.Uint16("rows", 24, "terminal rows")
	cols := fs.Uint16("cols", 80, "terminal columns")
	rest, err := parse(fs, args, 1, "TAB_ID --rows N --cols N")
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	return common.client().Resize(ctx, rest[0], *rows, *cols)
}

func runClose(args []string, env *environment) error {
	fs, common := newFlagSet("close", env)
	rest, err := parse(fs, args, 1, "TAB_ID...")
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	c := common.client()
	var errs []error
	for _, tabID := range rest {
		if err := c.Close(ctx, tabID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tabID, err))
		}
	}
	return errors.Join(errs...)
}

func runList(args []string, env *environment) error {
	fs, common := newFlagSet("list", env)
	asJSON := fs.Bool("json", false, "print JSON")
	if _, err := parse(fs, args, 0, "[--json]"); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	sessions, err := common.client().List(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(env.stdout, sessions)
	}

	tw := tabwriter.NewWriter(env.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TAB\tPID\tSIZE\tSTATUS\tSHELL\tSTARTED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%d\t%dx%d\t%s\t%s\t%s\n",
			s.ID, s.Pid, s.Cols, s.Rows, status(s), s.Shell, s.StartedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func runGet(args []string, env *environment) error {
	fs, common := newFlagSet("get", env)
	rest, err := parse(fs, args, 1, "TAB_ID")
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	info, err := common.client().Get(ctx, rest[0])
	if err != nil {
		return err
	}
	return printJSON(env.stdout, info)
}

func runHealth(args []string, env *environment) error {
	fs, common := newFlagSet("health", env)
	if _, err := parse(fs, args, 0, ""); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	h, err := common.client().Health(ctx)
	if err != nil {
		return err
	}
	return printJSON(env.stdout, h)
}

func status(info pty.Info) string {
	if info.Exited {
		return fmt.Sprintf("exited(%d)", info.ExitCode)
	}
	return "running"
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
