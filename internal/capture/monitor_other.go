//go:build !linux && !freebsd

package capture

import (
	"context"

	"github.com/rs/zerolog"
)

const hasPulseMonitor = false

func openMonitor(context.Context, int, zerolog.Logger) (*Stream, error) {
	return nil, ErrUnsupported
}
