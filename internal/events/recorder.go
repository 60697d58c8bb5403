package events

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultMaxBytes is the trace size that triggers rotation.
const DefaultMaxBytes = 4 << 20

// Record is the JSONL form of an event.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Type      Type      `json:"type"`
	Source    string    `json:"source"`
	Path      string    `json:"path,omitempty"`
	Items     int       `json:"items,omitempty"`
	Keys      []string  `json:"keys,omitempty"`
	Message   string    `json:"message,omitempty"`
	State     string    `json:"state,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewRecord flattens an event for the trace.
func NewRecord(ev Event) Record {
	r := Record{
		Timestamp: ev.Time.UTC(),
		Type:      ev.Type,
		Source:    ev.Source,
		Path:      ev.Path,
		Items:     len(ev.Items),
	}
	for _, it := range ev.Items {
		r.Keys = append(r.Keys, it.Key)
	}
	if ev.Diagnostic != nil {
		r.Message = ev.Diagnostic.Message
	}
	if ev.Health != nil {
		r.State = string(ev.Health.State)
		r.Error = ev.Health.LastError
	}
	if ev.Err != nil {
		r.Error = ev.Err.Error()
	}
	return r
}

// Recorder appends raw events to a JSONL trace file. When the file grows
// past maxBytes it is moved to path+".1" and a fresh file is started.
type Recorder struct {
	path     string
	maxBytes int64

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewRecorder opens (or creates) the trace file. maxBytes <= 0 uses
// DefaultMaxBytes.
func NewRecorder(path string, maxBytes int64) (*Recorder, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating trace directory: %w", err)
	}
	r := &Recorder{path: path, maxBytes: maxBytes}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening trace file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat trace file: %w", err)
	}
	r.file = f
	r.size = info.Size()
	return nil
}

// Record writes one event.
func (r *Recorder) Record(ev Event) error {
	data, err := json.Marshal(NewRecord(ev))
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	if r.size+int64(len(data))+1 > r.maxBytes && r.size > 0 {
		if err := r.rotate(); err != nil {
			return err
		}
	}
	n, err := r.file.Write(append(data, '\n'))
	r.size += int64(n)
	if err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// rotate must be called with r.mu held.
func (r *Recorder) rotate() error {
	r.file.Close()
	r.file = nil
	if err := os.Rename(r.path, r.path+".1"); err != nil && !os.IsNotExist(err) {
		// Reopen the original if the rename fails
		if openErr := r.open(); openErr != nil {
			return openErr
		}
		return fmt.Errorf("rotating trace file: %w", err)
	}
	return r.open()
}

// Close closes the trace file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Tee returns an emitter that records each event before passing it on.
// Recording failures are reported through onErr and never block delivery.
func (r *Recorder) Tee(next Emitter, onErr func(error)) Emitter {
	return func(ev Event) {
		if err := r.Record(ev); err != nil && onErr != nil {
			onErr(err)
		}
		next(ev)
	}
}
