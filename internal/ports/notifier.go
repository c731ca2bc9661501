package ports

import "context"

// Notifier is the fire-and-forget operator message sink plus the inbound
// control-command channel. Delivery failures are logged by implementations
// and never propagate into trading decisions.
type Notifier interface {
	// Send delivers a structured event message to the operator.
	Send(ctx context.Context, msg string)

	// Commands returns any control commands the operator issued since the
	// previous call (e.g., "/status").
	Commands(ctx context.Context) ([]string, error)
}
