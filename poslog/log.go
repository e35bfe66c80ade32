// Package poslog provides the one package-level logger type the
// engine holds (the engine itself emits no log lines through it),
// grounded in
// go.uber.org/zap — already in the teacher's transitive dependency
// graph (pulled in by go-libp2p) and the idiom used across the example
// pack for structured, leveled logging instead of fmt/log string
// building.
package poslog

import "go.uber.org/zap"

// Logger is satisfied by *zap.SugaredLogger; it is narrowed to a
// handful of leveled methods so tests can supply a no-op stub without
// constructing a real zap core.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
}

// New builds a production zap logger, sugared for the keysAndValues
// call style.
func New() (Logger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// Nop returns a Logger that discards everything, used as the default
// when the caller does not care to wire one in (and in tests).
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debugw(string, ...interface{}) {}
func (nopLogger) Infow(string, ...interface{})  {}
func (nopLogger) Warnw(string, ...interface{})  {}
