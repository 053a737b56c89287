// Package cli implements commands of the webstuff binary.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lodego/webstuff/internal/config"
	"github.com/lodego/webstuff/pkg/client"
	"github.com/lodego/webstuff/pkg/logger"
)

// app holds dependencies shared by the commands.
type app struct {
	version   string
	buildTime string
	stdout    io.Writer
	stderr    io.Writer
	envFile   string
	// newSender creates the sender from the configuration, tests replace it by a mocked one.
	newSender func(cfg *config.Config) client.Sender
	now       func() time.Time
	cfg       *config.Config
	telemetry *telemetry
}

const telemetryShutdownTimeout = 5 * time.Second

func newApp(version, buildTime string, stdout, stderr io.Writer) *app {
	return &app{
		version:   version,
		buildTime: buildTime,
		stdout:    stdout,
		stderr:    stderr,
		envFile:   config.DefaultEnvFile,
		newSender: newSender,
		now:       time.Now,
	}
}

// Execute runs the CLI and exits the process with the exit code of the command.
func Execute(version, buildTime string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, newApp(version, buildTime, os.Stdout, os.Stderr), os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, a *app, args []string) int {
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)

	if a.telemetry != nil {
		// The command context may be already canceled
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryShutdownTimeout)
		if shutdownErr := a.telemetry.shutdown(shutdownCtx); shutdownErr != nil {
			fmt.Fprintf(a.stderr, "Warning: %s\n", shutdownErr)
		}
		cancel()
	}

	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %s\n", err)
		return ExitCode(err)
	}
	return ExitSuccess
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "webstuff",
		Short: "Send HTTP requests and print decoded responses.",
		Long: `webstuff sends GET, POST, PUT and DELETE requests, decodes the response body
by its content type and prints it as JSON, YAML or a Go dump.

Configuration is read from flags, WEBSTUFF_* environment variables and the .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags(), a.envFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			if cfg.Telemetry {
				if a.telemetry, err = newTelemetry(a.stderr, a.version); err != nil {
					return err
				}
			}
			return nil
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newDebugCommand(a))
	for _, method := range requestMethods {
		root.AddCommand(newRequestCommand(a, method))
	}
	root.AddCommand(newVersionCommand(a))
	return root
}

// newSender creates the sender selected by the configuration, without trace hooks.
func newSender(cfg *config.Config) client.Sender {
	if cfg.Transport == config.TransportResty {
		return client.NewRestySender(
			client.WithRestyBaseURL(cfg.BaseURL),
			client.WithRestyTimeout(cfg.Timeout),
		)
	}

	c := client.New().WithBaseURL(cfg.BaseURL).WithTimeout(cfg.Timeout)
	if cfg.Transport == config.TransportHTTP2 {
		c = c.WithTransportFactory(client.HTTP2Transport)
	}
	return c
}

// sender returns the configured sender.
// The native client gets trace hooks enabled by the configuration, resty does not support them.
func (a *app) sender() client.Sender {
	s := a.newSender(a.cfg)
	c, ok := s.(client.Client)
	if !ok {
		return s
	}
	if a.telemetry != nil {
		c = c.AndTrace(a.telemetry.trace())
	}
	if a.cfg.Trace {
		c = c.AndTrace(client.LogTracer(a.stderr))
	}
	if a.cfg.Dump {
		c = c.AndTrace(client.DumpTracer(a.stderr))
	}
	return c
}

// newLogger creates a logger writing to stderr, so stdout contains only the command output.
func (a *app) newLogger(name string) *logger.Logger {
	opts := []logger.Option{logger.WithWriter(a.stderr), logger.WithLevel(a.cfg.Level)}
	if a.cfg.NoColor {
		opts = append(opts, logger.WithColor(false))
	}
	return logger.Get(name, opts...)
}
