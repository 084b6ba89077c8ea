package cli

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

// NewLogger builds the process logger from the configured level and format.
func NewLogger(level, format string, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	logger.SetLevel(lvl)

	switch format {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: want text or json", format)
	}

	return logger, nil
}

// EventLogger renders orchestrator events through logrus.
type EventLogger struct {
	logger      logrus.FieldLogger
	explorerURL string
}

// NewEventLogger creates an event sink. explorerURL is prefixed to transaction hashes.
func NewEventLogger(logger logrus.FieldLogger, explorerURL string) *EventLogger {
	return &EventLogger{logger: logger, explorerURL: explorerURL}
}

// Emit implements domain.EventSink.
func (l *EventLogger) Emit(e domain.Event) {
	fields := logrus.Fields{}
	if e.Account != nil {
		fields["account"] = domain.ShortAddress(*e.Account)
	}
	if e.Kind != 0 {
		fields["kind"] = e.Kind.String()
	}
	if e.TxHash != nil {
		fields["tx"] = e.TxHash.Hex()
		if l.explorerURL != "" {
			fields["explorer"] = l.explorerURL + e.TxHash.Hex()
		}
	}
	entry := l.logger.WithFields(fields)
	if !e.Time.IsZero() {
		entry = entry.WithTime(e.Time)
	}

	switch e.Level {
	case domain.LevelDebug:
		entry.Debug(e.Message)
	case domain.LevelSuccess:
		entry.Info("✅ " + e.Message)
	case domain.LevelWarning:
		entry.Warn("⚠️ " + e.Message)
	case domain.LevelError:
		entry.Error("❌ " + e.Message)
	default:
		entry.Info("🔄 " + e.Message)
	}
}
