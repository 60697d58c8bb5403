// Package cli implements the edgemon command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/edgemon/internal/config"
	"github.com/Dicklesworthstone/edgemon/internal/monitor"
)

// Build information - set via ldflags
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// exitError carries an exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// overrides holds command line values that take precedence over the file.
type overrides struct {
	logFile       string
	traceFile     string
	theme         string
	kernelBackend string
	kernelLog     string
	statusDirs    []string
	certDirs      []string
	noMouse       bool
	noHost        bool
}

// apply copies the flags the user set onto cfg.
func (o *overrides) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-file") {
		cfg.LogFile = config.ExpandHome(o.logFile)
	}
	if flags.Changed("trace-file") {
		cfg.TraceFile = config.ExpandHome(o.traceFile)
	}
	if flags.Changed("theme") {
		cfg.Theme = o.theme
	}
	if flags.Changed("kernel-backend") {
		cfg.Sources.KernelBackend = o.kernelBackend
	}
	if flags.Changed("kernel-log") {
		cfg.Sources.KernelLog = config.ExpandHome(o.kernelLog)
	}
	if flags.Changed("status-dir") {
		cfg.Sources.StatusDirs = expandAll(o.statusDirs)
	}
	if flags.Changed("cert-dir") {
		cfg.Sources.CertDirs = expandAll(o.certDirs)
	}
	if o.noMouse {
		cfg.Render.Mouse = false
	}
	if o.noHost {
		cfg.Sources.HostInterfaces = false
	}
}

func expandAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			out = append(out, config.ExpandHome(p))
		}
	}
	return out
}

// runMonitor starts the dashboard. It is replaced in tests.
var runMonitor = monitor.Run

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		opts    overrides
	)

	cmd := &cobra.Command{
		Use:   "edgemon",
		Short: "Terminal monitor for an edge device",
		Long: `edgemon shows the live state of an edge device in the terminal:
network interfaces, application workloads, certificates and kernel
diagnostics, updated as the device reports changes.

Examples:
  edgemon                                  # Use ~/.config/edgemon/config.toml
  edgemon --status-dir /run/status         # Watch a different status directory
  edgemon --kernel-backend none --no-host  # Only watch status files`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return &exitError{code: monitor.ExitSetup, err: err}
			}
			opts.apply(cmd, cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			monitor.Version = Version
			if code := runMonitor(ctx, cfg); code != monitor.ExitOK {
				return &exitError{code: code}
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/edgemon/config.toml)")

	flags := cmd.Flags()
	flags.StringVar(&opts.logFile, "log-file", "", "Write the debug log to this file")
	flags.StringVar(&opts.traceFile, "trace-file", "", "Record raw source events as JSONL")
	flags.StringVar(&opts.theme, "theme", "", "Color theme: auto, mocha, latte, nord, plain")
	flags.StringVar(&opts.kernelBackend, "kernel-backend", "", "Kernel log backend: kmsg, file, klogctl, none")
	flags.StringVar(&opts.kernelLog, "kernel-log", "", "Device or file read by the kernel backend")
	flags.StringSliceVar(&opts.statusDirs, "status-dir", nil, "Directory of JSON/YAML status documents (repeatable)")
	flags.StringSliceVar(&opts.certDirs, "cert-dir", nil, "Directory of PEM certificates (repeatable)")
	flags.BoolVar(&opts.noMouse, "no-mouse", false, "Disable mouse reporting")
	flags.BoolVar(&opts.noHost, "no-host", false, "Do not poll host network interfaces")

	cmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(&cfgFile),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(w, Version)
				return
			}
			fmt.Fprintf(w, "edgemon version %s\n", Version)
			fmt.Fprintf(w, "  commit:    %s\n", Commit)
			fmt.Fprintf(w, "  built:     %s\n", Date)
			fmt.Fprintf(w, "  go:        %s\n", runtime.Version())
			fmt.Fprintf(w, "  platform:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")
	return cmd
}

func newConfigCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print configuration file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			path := *cfgFile
			if path == "" {
				path = config.DefaultPath()
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return &exitError{code: monitor.ExitSetup, err: err}
			}
			return config.Print(cfg, cmd.OutOrStdout())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(*cfgFile); err != nil {
				return &exitError{code: monitor.ExitSetup, err: err}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
			return nil
		},
	})

	return cmd
}

// Execute runs the command line and returns the process exit status.
func Execute() int {
	return run(context.Background(), newRootCmd(), os.Args[1:])
}

func run(ctx context.Context, cmd *cobra.Command, args []string) int {
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return monitor.ExitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Error:", ee.err)
		}
		return ee.code
	}
	// Usage errors: unknown flags, bad arguments.
	fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	return monitor.ExitSetup
}
