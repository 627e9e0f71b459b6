package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger. Useful for
// development when you want protocol activity visible alongside the
// rest of the application's logs.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter that writes to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event at a level chosen by its category.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("gateway_id", event.GatewayID),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.ConnectionID != "" {
		attrs = append(attrs, slog.String("connection_id", event.ConnectionID))
	}

	level := slog.LevelDebug
	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.String("direction", event.Direction.String()),
			slog.String("frame_type", event.Frame.Type),
			slog.Int("frame_size", event.Frame.Size),
		)
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		level = slog.LevelInfo
	case event.Reconnect != nil:
		attrs = append(attrs,
			slog.Int("attempt", event.Reconnect.Attempt),
			slog.Duration("delay", event.Reconnect.Delay),
		)
		level = slog.LevelWarn
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error", event.Error.Message),
			slog.String("kind", event.Error.Kind),
		)
		level = slog.LevelError
	}

	a.logger.LogAttrs(context.Background(), level, "gateway protocol event", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
