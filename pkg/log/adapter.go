package log

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/sirupsen/logrus"
)

// BadgerLogrusAdapter implements badger.Logger interface using logrus
type BadgerLogrusAdapter struct {
	*logrus.Entry // Embed logrus Entry
}

// NewBadgerLogrusAdapter creates a new adapter
func NewBadgerLogrusAdapter(entry *logrus.Entry) *BadgerLogrusAdapter {
	return &BadgerLogrusAdapter{entry}
}

// Errorf logs an error message
func (l *BadgerLogrusAdapter) Errorf(f string, v ...interface{}) { l.Entry.Errorf(f, v...) }

// Warningf logs a warning message
func (l *BadgerLogrusAdapter) Warningf(f string, v ...interface{}) { l.Entry.Warningf(f, v...) }

// Infof logs an info message
func (l *BadgerLogrusAdapter) Infof(f string, v ...interface{}) { l.Entry.Infof(f, v...) }

// Debugf logs a debug message
func (l *BadgerLogrusAdapter) Debugf(f string, v ...interface{}) { l.Entry.Debugf(f, v...) }

// PgxLogrusAdapter implements tracelog.Logger using logrus
type PgxLogrusAdapter struct {
	entry *logrus.Entry
}

// NewPgxLogrusAdapter creates a new adapter
func NewPgxLogrusAdapter(entry *logrus.Entry) *PgxLogrusAdapter {
	return &PgxLogrusAdapter{entry: entry}
}

// Log forwards a pgx trace event, with its data as logrus fields
func (l *PgxLogrusAdapter) Log(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	entry := l.entry.WithFields(logrus.Fields(data))
	switch level {
	case tracelog.LogLevelTrace:
		entry.Trace(msg)
	case tracelog.LogLevelDebug:
		entry.Debug(msg)
	case tracelog.LogLevelInfo:
		entry.Info(msg)
	case tracelog.LogLevelWarn:
		entry.Warn(msg)
	case tracelog.LogLevelError:
		entry.Error(msg)
	}
}

// PgxLogLevel maps the logrus level onto the closest pgx trace level
func PgxLogLevel(level logrus.Level) tracelog.LogLevel {
	switch {
	case level >= logrus.TraceLevel:
		return tracelog.LogLevelTrace
	case level >= logrus.DebugLevel:
		return tracelog.LogLevelDebug
	case level >= logrus.InfoLevel:
		return tracelog.LogLevelWarn // Query-level info is too chatty at info
	default:
		return tracelog.LogLevelError
	}
}

// CronLogrusAdapter implements cron.Logger using logrus
type CronLogrusAdapter struct {
	entry *logrus.Entry
}

// NewCronLogrusAdapter creates a new adapter
func NewCronLogrusAdapter(entry *logrus.Entry) *CronLogrusAdapter {
	return &CronLogrusAdapter{entry: entry}
}

// Info logs routine scheduler events at debug level
func (l *CronLogrusAdapter) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(kvFields(keysAndValues)).Debug(msg)
}

// Error logs a scheduler error
func (l *CronLogrusAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(kvFields(keysAndValues)).WithError(err).Error(msg)
}

// kvFields converts alternating key/value pairs into logrus fields
func kvFields(keysAndValues []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
