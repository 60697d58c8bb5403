//go:build linux

package kmsg

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Dicklesworthstone/edgemon/internal/events"
)

// syslog(2) actions.
const (
	syslogActionReadAll    = 3
	syslogActionSizeBuffer = 10
)

func (s *Source) runKlogctl(ctx context.Context, emit events.Emitter) error {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		size, err := unix.Klogctl(syslogActionSizeBuffer, nil)
		if err != nil {
			return fmt.Errorf("klogctl size: %w", err)
		}
		buf := make([]byte, size)
		n, err := unix.Klogctl(syslogActionReadAll, buf)
		if err != nil {
			return fmt.Errorf("klogctl read: %w", err)
		}
		s.deliverSnapshot(strings.Split(string(buf[:n]), "\n"), emit)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
