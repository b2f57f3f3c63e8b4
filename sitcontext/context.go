// Package sitcontext threads a leveled logger through a plain
// context.Context, grounded on distribution-distribution's context/context.go
// and context/logger.go. The core only ever logs at Debug (per-record work)
// and Warn (recovered reducer errors), since no operation in store, reduce
// or jsreducer aborts the process -- spec.md's reduction and record-creation
// operations are designed to degrade, not crash.
package sitcontext

import (
	"fmt"

	netcontext "golang.org/x/net/context"

	"github.com/sirupsen/logrus"
)

// Context is a plain context.Context, re-exported through
// golang.org/x/net/context the way the teacher's own context.Context does --
// a holdover from the pre-1.7 stdlib-context transition that x/net/context
// keeps as a type alias over the real stdlib context today.
type Context = netcontext.Context

type loggerKey struct{}

// Background returns a non-nil, empty root Context with no logger attached;
// GetLogger falls back to the standard logger for it.
func Background() Context {
	return netcontext.Background()
}

// WithLogger returns a copy of ctx carrying logger, retrievable with
// GetLogger/GetLogEntry.
func WithLogger(ctx Context, logger *logrus.Entry) Context {
	return netcontext.WithValue(ctx, loggerKey{}, logger)
}

// GetLogEntry returns the *logrus.Entry attached to ctx by WithLogger, or a
// fresh entry off the standard logger if none was attached.
func GetLogEntry(ctx Context) *logrus.Entry {
	if entry, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// GetLogger returns a logrus.FieldLogger for ctx, optionally annotated with
// extra fields taken from the given keys by looking them up on ctx itself --
// mirroring the teacher's GetLogger(ctx, keys...) convenience.
func GetLogger(ctx Context, keys ...interface{}) logrus.FieldLogger {
	entry := GetLogEntry(ctx)
	if len(keys) == 0 {
		return entry
	}
	fields := logrus.Fields{}
	for _, key := range keys {
		if v := ctx.Value(key); v != nil {
			fields[fmt.Sprint(key)] = v
		}
	}
	return entry.WithFields(fields)
}
