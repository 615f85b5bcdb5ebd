package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

// defaultCommandTimeout bounds read-only commands when no request timeout is configured.
const defaultCommandTimeout = 60 * time.Second

// contextWithTimeout returns a timeout context rooted in the command context.
func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	if d <= 0 {
		d = defaultCommandTimeout
	}
	return context.WithTimeout(base, d)
}
