package monitor

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/Dicklesworthstone/edgemon/internal/config"
	"github.com/Dicklesworthstone/edgemon/internal/events"
	"github.com/Dicklesworthstone/edgemon/internal/model"
	"github.com/Dicklesworthstone/edgemon/internal/normalizer"
	"github.com/Dicklesworthstone/edgemon/internal/resilience"
	"github.com/Dicklesworthstone/edgemon/internal/source/hostnet"
	"github.com/Dicklesworthstone/edgemon/internal/source/kmsg"
	"github.com/Dicklesworthstone/edgemon/internal/source/statusfiles"
	"github.com/Dicklesworthstone/edgemon/internal/store"
)

// eventBuffer is the capacity of the channel between sources and the
// normalizer.
const eventBuffer = 256

// Pipeline runs the supervised sources and the normalizer that feeds the
// store. The normalizer is the store's only writer.
type Pipeline struct {
	sources  []resilience.Source
	policy   resilience.Policy
	norm     *normalizer.Normalizer
	events   chan events.Event
	recorder *events.Recorder
}

// Sources builds the enabled sources for a configuration.
func Sources(cfg *config.Config) []resilience.Source {
	var out []resilience.Source
	if len(cfg.WatchedPaths()) > 0 {
		out = append(out, statusfiles.New(cfg.Sources))
	}
	if cfg.Sources.KernelBackend != config.KernelBackendNone {
		out = append(out, kmsg.New(cfg.Sources))
	}
	if cfg.Sources.HostInterfaces {
		out = append(out, hostnet.New(cfg.Sources.HostPollInterval.Duration, nil))
	}
	return out
}

// NewPipeline prepares the pipeline. It opens the event trace when one is
// configured.
func NewPipeline(cfg *config.Config, st *store.Store) (*Pipeline, error) {
	p := &Pipeline{
		sources: Sources(cfg),
		policy: resilience.Policy{
			MaxRetries: cfg.Resilience.MaxRetries,
			Initial:    cfg.Resilience.BackoffInitial.Duration,
			Max:        cfg.Resilience.BackoffMax.Duration,
		},
		norm:   normalizer.New(st, cfg.Normalizer.Debounce.Duration),
		events: make(chan events.Event, eventBuffer),
	}
	if cfg.TraceFile != "" {
		r, err := events.NewRecorder(cfg.TraceFile, events.DefaultMaxBytes)
		if err != nil {
			return nil, err
		}
		p.recorder = r
	}
	return p, nil
}

// Run blocks until ctx is cancelled and every source has released its
// resources. A source that degrades stops on its own; the rest keep going.
// A panic in any goroutine stops the whole pipeline and is returned as an
// error wrapping model.ErrInternalFault.
func (p *Pipeline) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	emit := events.Chan(p.events, gctx.Done())
	if p.recorder != nil {
		defer p.recorder.Close()
		emit = p.recorder.Tee(emit, func(err error) {
			log.Printf("[monitor] trace: %v", err)
		})
	}

	for _, src := range p.sources {
		sup := resilience.NewSupervisor(p.policy, emit)
		g.Go(recovered("source "+src.Name(), func() error {
			state := sup.Run(gctx, src)
			log.Printf("[monitor] source %s finished: %s", src.Name(), state)
			return nil
		}))
	}
	g.Go(recovered("normalizer", func() error {
		return p.norm.Run(gctx, p.events)
	}))
	return g.Wait()
}

// recovered turns a panic in fn into an error so the caller can restore
// the terminal before exiting.
func recovered(name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[monitor] %s panicked: %v\n%s", name, r, debug.Stack())
				err = fmt.Errorf("%w: %s: %v", model.ErrInternalFault, name, r)
			}
		}()
		return fn()
	}
}
