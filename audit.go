package geoAuth

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/geoAuth/internal/audit"
)

// AuditEvent is one session lifecycle record.
type AuditEvent = audit.Event

// AuditSink receives audit events on the dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink logs audit events through a slog.Logger.
type SlogSink = audit.SlogSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return audit.NewSlogSink(logger)
}
