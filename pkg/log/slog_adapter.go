package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes station events to an slog.Logger.
// Useful for development when you want to see station activity in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session", event.SessionID),
		slog.String("category", event.Category.String()),
	}

	// Add optional identifiers
	if event.Instrument != "" {
		attrs = append(attrs, slog.String("instrument", event.Instrument))
	}
	if event.Parameter != "" {
		attrs = append(attrs, slog.String("parameter", event.Parameter))
	}

	// Add type-specific attributes
	switch {
	case event.Connection != nil:
		attrs = append(attrs,
			slog.String("action", event.Connection.Action.String()),
		)
		if event.Connection.Driver != "" {
			attrs = append(attrs, slog.String("driver", event.Connection.Driver))
		}
		if event.Connection.Address != "" {
			attrs = append(attrs, slog.String("address", event.Connection.Address))
		}
		if event.Connection.IDN != "" {
			attrs = append(attrs, slog.String("idn", event.Connection.IDN))
		}
	case event.Param != nil:
		attrs = append(attrs, slog.String("op", event.Param.Op.String()))
		if event.Param.Value != nil {
			attrs = append(attrs, slog.Any("value", event.Param.Value))
		}
		if event.Param.Raw != nil {
			attrs = append(attrs, slog.Any("raw", event.Param.Raw))
		}
		if event.Param.Unit != "" {
			attrs = append(attrs, slog.String("unit", event.Param.Unit))
		}
		if event.Param.Elapsed != nil {
			attrs = append(attrs, slog.Duration("elapsed", *event.Param.Elapsed))
		}
	case event.Sample != nil:
		attrs = append(attrs, slog.Float64("value", event.Sample.Value))
		if event.Sample.Unit != "" {
			attrs = append(attrs, slog.String("unit", event.Sample.Unit))
		}
	case event.State != nil:
		attrs = append(attrs,
			slog.String("entity", event.State.Entity.String()),
			slog.String("old_state", event.State.OldState),
			slog.String("new_state", event.State.NewState),
		)
		if event.State.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.State.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "station", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
