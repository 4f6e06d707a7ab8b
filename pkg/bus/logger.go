package bus

import (
	"fmt"
	"log"
	"os"
)

// defaultLogger writes bus diagnostics to stderr.
type defaultLogger struct {
	logger *log.Logger
}

func newDefaultLogger() Logger {
	return &defaultLogger{
		logger: log.New(os.Stderr, "[ERROR] ", log.LstdFlags|log.Lshortfile),
	}
}

func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	l.logger.Output(3, fmt.Sprintf(format, args...))
}
