package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

type command struct {
	name    string
	summary string
	run     func(args []string, env *environment) error
}

// environment carries the process streams so commands can be tested.
type environment struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

var commands = []command{
	{"create", "start a shell and print its tab id", runCreate},
	{"write", "send input to a shell", runWrite},
	{"read", "print buffered output", runRead},
	{"resize", "change a shell's window size", runResize},
	{"close", "terminate a shell", runClose},
	{"list", "list live shells", runList},
	{"get", "describe one shell", runGet},
	{"health", "show server health", runHealth},
	{"attach", "connect the local terminal to a shell", runAttach},
}

func main() {
	env := &environment{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := run(os.Args[1:], env); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, env *environment) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(env.stderr)
		return nil
	}
	for _, cmd := range commands {
		if cmd.name != args[0] {
			continue
		}
		if err := cmd.run(args[1:], env); !errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return nil
	}
	printUsage(env.stderr)
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage(w io.Writer) {
	var b strings.Builder
	b.WriteString("ptyctl controls shells on a ptyhost server.\n\nUsage:\n  ptyctl <command> [flags]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(&b, "  %-8s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintf(&b, "\nThe server defaults to $%s or %s.\n", serverEnv, defaultServerURL)
	io.WriteString(w, b.String())
}
