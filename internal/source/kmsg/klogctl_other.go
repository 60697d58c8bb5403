//go:build !linux

package kmsg

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dicklesworthstone/edgemon/internal/events"
)

func (s *Source) runKlogctl(ctx context.Context, emit events.Emitter) error {
	return fmt.Errorf("klogctl: %w", errors.ErrUnsupported)
}
