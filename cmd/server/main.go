package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		port       string
		host       string
		shell      string
		logLevel   string
		configFile string
		dev        bool
	)

	flagSet := pflag.NewFlagSet("ptyhost", pflag.ContinueOnError)
	flagSet.StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	flagSet.StringVar(&host, "host", "", "listen host (overrides HOST)")
	flagSet.StringVar(&shell, "shell", "", "shell to spawn for new tabs (overrides PTY_SHELL)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	flagSet.StringVarP(&configFile, "config", "c", "", "TOML config file (overrides "+config.FileEnv+")")
	flagSet.BoolVar(&dev, "dev", false, "development mode: colored console logs at debug level")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	if configFile != "" {
		os.Setenv(config.FileEnv, configFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if shell != "" {
		cfg.Terminal.Shell = shell
	}
	if dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errChan
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `ptyhost serves interactive shells over HTTP and WebSocket.

Configuration is read from defaults, then the TOML file named by
%s, then environment variables. Flags override all three.

Usage:
  ptyhost [flags]

Flags:
%s`, config.FileEnv, flagSet.FlagUsages())
}
