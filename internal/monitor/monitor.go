// Package monitor wires the sources, the normalizer, the store and the
// dashboard into one process and maps the outcome to an exit status.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/Dicklesworthstone/edgemon/internal/config"
	"github.com/Dicklesworthstone/edgemon/internal/model"
	"github.com/Dicklesworthstone/edgemon/internal/source/hostnet"
	"github.com/Dicklesworthstone/edgemon/internal/store"
	"github.com/Dicklesworthstone/edgemon/internal/tui/dashboard"
	"github.com/Dicklesworthstone/edgemon/internal/tui/icons"
	"github.com/Dicklesworthstone/edgemon/internal/tui/theme"
)

// Exit statuses.
const (
	ExitOK    = 0
	ExitFault = 1
	ExitSetup = 2
)

// Version is reported in the footer. It is set at build time.
var Version = "dev"

// isTerminal reports whether fd is a terminal.
var isTerminal = func(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Run starts the monitor on the controlling terminal and blocks until the
// user quits, ctx is cancelled, or the terminal fails.
func Run(ctx context.Context, cfg *config.Config) int {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "edgemon: %v\n", err)
		return ExitSetup
	}
	if !isTerminal(os.Stdout.Fd()) || !isTerminal(os.Stdin.Fd()) {
		fmt.Fprintln(os.Stderr, "edgemon: stdin and stdout must be a terminal")
		return ExitSetup
	}

	closeLog, err := setupLogging(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "edgemon: log file: %v\n", err)
		return ExitSetup
	}
	defer closeLog()

	st := store.New(cfg.Diagnostics.RingCapacity)
	pipeline, err := NewPipeline(cfg, st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "edgemon: trace file: %v\n", err)
		return ExitSetup
	}

	host, err := hostnet.ReadSummary(ctx)
	if err != nil {
		log.Printf("[monitor] host summary unavailable: %v", err)
	}

	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		width, height = 80, 24
	}

	changes, unsubscribe := st.Subscribe()
	defer unsubscribe()

	m := dashboard.New(st, changes, dashboard.Options{
		TickInterval: cfg.Render.TickInterval.Duration,
		Theme:        theme.Resolve(cfg.Theme),
		Icons:        icons.Detect(),
		Host:         host,
		Version:      Version,
		Width:        width,
		Height:       height,
	})
	defer m.Close()

	opts := []tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithFPS(cfg.Render.MaxFPS),
	}
	if cfg.Render.Mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}

	prog := tea.NewProgram(m, opts...)

	pctx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		err := pipeline.Run(pctx)
		if err != nil && pctx.Err() == nil {
			// Quitting through the program restores the terminal.
			prog.Quit()
		}
		done <- err
	}()

	log.Printf("[monitor] started: %d sources", len(pipeline.sources))
	_, runErr := prog.Run()

	stop()
	pipeErr := <-done
	if pipeErr != nil {
		log.Printf("[monitor] pipeline: %v", pipeErr)
	}

	code := exitCode(ctx, runErr, pipeErr)
	if code == ExitFault {
		if errors.Is(pipeErr, model.ErrInternalFault) {
			fmt.Fprintf(os.Stderr, "edgemon: %v\n", pipeErr)
		} else {
			log.Printf("[monitor] %v", runErr)
			fmt.Fprintf(os.Stderr, "edgemon: %v\n", fmt.Errorf("%w: %v", model.ErrTerminalFault, runErr))
		}
	}
	return code
}

// exitCode maps the program and pipeline results to an exit status. A
// program stopped by ctx (a signal) is a clean exit; a pipeline that
// panicked is a fault whatever the program reported.
func exitCode(ctx context.Context, runErr, pipeErr error) int {
	switch {
	case errors.Is(pipeErr, model.ErrInternalFault):
		return ExitFault
	case runErr == nil:
		return ExitOK
	case errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil:
		return ExitOK
	case errors.Is(runErr, tea.ErrInterrupted):
		return ExitOK
	default:
		return ExitFault
	}
}

// setupLogging sends the standard logger to path, or discards it. The
// terminal belongs to the UI while the monitor runs.
func setupLogging(path string) (func(), error) {
	if path == "" {
		log.SetOutput(io.Discard)
		return func() {}, nil
	}
	f, err := tea.LogToFile(path, "edgemon")
	if err != nil {
		return nil, err
	}
	return func() { f.Close() }, nil
}
