// Package kmsg reads the kernel log ring into diagnostic events.
package kmsg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"syscall"
	"time"

	"github.com/Dicklesworthstone/edgemon/internal/config"
	"github.com/Dicklesworthstone/edgemon/internal/events"
	"github.com/Dicklesworthstone/edgemon/internal/model"
)

// Name is the source name used for health reporting.
const Name = "kernel"

// maxRecord bounds one /dev/kmsg read; the kernel rejects smaller buffers
// for long records with EINVAL.
const maxRecord = 8192

// Source reads kernel messages from one of the configured backends. The
// parser and read position survive restarts, so a restarted source does not
// replay records it already delivered.
type Source struct {
	backend string
	path    string
	poll    time.Duration

	parser *Parser
	// delivered is the next kernel sequence number not yet emitted.
	delivered uint64
	// offset is the file backend's read position.
	offset int64
	klog   klogState
}

// New creates a kernel log source.
func New(cfg config.SourcesConfig) *Source {
	poll := cfg.KernelPoll.Duration
	if poll <= 0 {
		poll = time.Second
	}
	return &Source{
		backend: cfg.KernelBackend,
		path:    cfg.KernelLog,
		poll:    poll,
		parser:  NewParser(),
	}
}

// Name implements resilience.Source.
func (s *Source) Name() string { return Name }

// Run reads until ctx is cancelled or the backend fails.
func (s *Source) Run(ctx context.Context, emit events.Emitter) error {
	switch s.backend {
	case config.KernelBackendKmsg:
		return s.runKmsg(ctx, emit)
	case config.KernelBackendFile:
		return s.runFile(ctx, emit)
	case config.KernelBackendKlogctl:
		return s.runKlogctl(ctx, emit)
	default:
		return fmt.Errorf("kernel backend %q: %w", s.backend, errors.ErrUnsupported)
	}
}

func (s *Source) runKmsg(ctx context.Context, emit events.Emitter) error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	// Reads on the device block; closing it is the only way to interrupt one.
	stop := context.AfterFunc(ctx, func() { f.Close() })
	defer stop()

	err = s.readRecords(f, emit)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readRecords consumes one kmsg record per Read until r fails. EPIPE means
// the kernel overwrote records we had not read yet; reading continues from
// the oldest record still available.
func (s *Source) readRecords(r io.Reader, emit events.Emitter) error {
	buf := make([]byte, maxRecord)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.deliver(string(buf[:n]), emit)
		}
		switch {
		case err == nil:
		case errors.Is(err, syscall.EPIPE):
			log.Printf("[kmsg] %v: kernel log records were overwritten", model.ErrNotificationOverflow)
			emit(events.Diag(Name, model.Diagnostic{
				Origin:   model.OriginMonitor,
				Severity: model.SevWarning,
				Time:     time.Now(),
				Message:  "kernel log records were overwritten before they could be read",
			}))
		case errors.Is(err, syscall.EINTR), errors.Is(err, syscall.EAGAIN):
		default:
			return err
		}
	}
}

// deliver parses one record and emits it unless it was already delivered.
// Unparsed records carry no kernel sequence and are always emitted.
func (s *Source) deliver(rec string, emit events.Emitter) {
	d, ok := s.parser.ParseRecord(rec)
	if !ok {
		return
	}
	if !d.Unparsed {
		if d.Seq < s.delivered {
			return
		}
		s.delivered = d.Seq + 1
	}
	emit(events.Diag(Name, d))
}

// runFile tails a text file, waiting at EOF. A file that shrinks was
// rotated or truncated and is read again from the start.
func (s *Source) runFile(ctx context.Context, emit events.Emitter) error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() < s.offset {
		s.offset = 0
	}
	if _, err := f.Seek(s.offset, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(f)

	var partial string
	for {
		chunk, err := r.ReadString('\n')
		if err == nil {
			line := partial + chunk
			s.offset += int64(len(line))
			s.deliverLine(line, emit)
			partial = ""
			continue
		}
		if !errors.Is(err, io.EOF) {
			return err
		}
		// An unterminated line is only counted once it completes.
		partial += chunk

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.poll):
		}

		info, err := f.Stat()
		if err != nil {
			return err
		}
		if info.Size() < s.offset+int64(len(partial)) {
			log.Printf("[kmsg] %s truncated, reading from start", s.path)
			s.offset = 0
			partial = ""
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return err
			}
			r.Reset(f)
		}
	}
}

func (s *Source) deliverLine(line string, emit events.Emitter) {
	d, ok := s.parser.Parse(line)
	if !ok {
		return
	}
	emit(events.Diag(Name, d))
}
