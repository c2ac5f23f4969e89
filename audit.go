package tokenauth

import (
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/tokenauth/internal/audit"
)

type (
	// AuditEvent is one security-relevant engine action.
	AuditEvent = internalaudit.Event
	// AuditSink receives audit events from the dispatcher goroutine.
	AuditSink = internalaudit.Sink
	// NoOpSink discards events.
	NoOpSink = internalaudit.NoOpSink
	// ChannelSink forwards events onto a buffered channel.
	ChannelSink = internalaudit.ChannelSink
	// JSONWriterSink writes one JSON document per event.
	JSONWriterSink = internalaudit.JSONWriterSink
	// SlogSink logs events through a structured logger.
	SlogSink = internalaudit.SlogSink
)

// NewChannelSink returns a sink with the given channel capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink that encodes events to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink that logs events with logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
