package kmsg

import (
	"time"

	"github.com/Dicklesworthstone/edgemon/internal/events"
)

// klogState remembers the newest record of the last ring read so repeated
// READ_ALL snapshots only deliver what is new.
type klogState struct {
	last time.Duration
	// seen holds the messages already delivered at timestamp last.
	seen map[string]bool
}

// deliverSnapshot emits the lines of one full ring read that are newer than
// the previous read. Lines without a timestamp cannot be de-duplicated and
// are only delivered on the first read.
func (s *Source) deliverSnapshot(lines []string, emit events.Emitter) {
	first := s.klog.seen == nil
	last, seen := s.klog.last, s.klog.seen
	next := map[string]bool{}
	var newest time.Duration

	for _, line := range lines {
		d, ok := s.parser.Parse(line)
		if !ok {
			continue
		}
		if d.Unparsed || d.Timestamp == 0 {
			if first {
				emit(events.Diag(Name, d))
			}
			continue
		}
		if d.Timestamp < last || (d.Timestamp == last && seen[d.Message]) {
			continue
		}
		switch {
		case d.Timestamp > newest:
			newest = d.Timestamp
			next = map[string]bool{d.Message: true}
		case d.Timestamp == newest:
			next[d.Message] = true
		}
		emit(events.Diag(Name, d))
	}

	if newest > last || first {
		s.klog.last, s.klog.seen = newest, next
	} else if newest == last {
		for m := range next {
			s.klog.seen[m] = true
		}
	}
}
