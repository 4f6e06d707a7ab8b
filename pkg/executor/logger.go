package executor

import (
	"fmt"
	"log"
	"os"
)

// Logger is the diagnostic sink of the executor. Nothing is written during
// a well-behaved run; diagnostics appear only on task faults.
type Logger interface {
	Errorf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// defaultLogger writes prefixed lines to stderr using the standard library
// logger.
type defaultLogger struct {
	errorLogger *log.Logger
	warnLogger  *log.Logger
}

func newDefaultLogger() Logger {
	return &defaultLogger{
		errorLogger: log.New(os.Stderr, "[ERROR] ", log.LstdFlags|log.Lshortfile),
		warnLogger:  log.New(os.Stderr, "[WARN] ", log.LstdFlags|log.Lshortfile),
	}
}

func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	l.errorLogger.Output(3, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	l.warnLogger.Output(3, fmt.Sprintf(format, args...))
}
