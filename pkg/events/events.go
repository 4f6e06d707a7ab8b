// Package events carries the demo event vocabulary and ready-made
// handlers used by the strand command.
package events

import (
	"fmt"
	"log"
	"os"

	"github.com/strandio/strand/pkg/bus"
)

// Well-known event names.
const (
	UserLogin    = "user.login"
	UserMessage  = "user.message"
	SystemStatus = "system.status"
)

// LoginPayload is published under UserLogin.
type LoginPayload struct {
	UserID string
}

// MessagePayload is published under UserMessage.
type MessagePayload struct {
	From string
	Text string
}

// StatusPayload is published under SystemStatus.
type StatusPayload struct {
	Healthy bool
	Load    float64
}

// Logger receives handler observations and failures.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type stdLogger struct {
	info *log.Logger
	err  *log.Logger
}

func newStdLogger() Logger {
	return &stdLogger{
		info: log.New(os.Stdout, "[INFO] ", log.LstdFlags),
		err:  log.New(os.Stderr, "[ERROR] ", log.LstdFlags),
	}
}

func (l *stdLogger) Infof(format string, args ...interface{}) {
	l.info.Output(3, fmt.Sprintf(format, args...))
}

func (l *stdLogger) Errorf(format string, args ...interface{}) {
	l.err.Output(3, fmt.Sprintf(format, args...))
}

// LoginHandler observes UserLogin events in a loop.
func LoginHandler(logger Logger) bus.Handler {
	return func(hc *bus.HandlerContext) {
		hc.SwitchToExecutor()
		for {
			p, err := bus.AwaitEvent[LoginPayload](hc, UserLogin)
			if err != nil {
				logger.Errorf("login handler: %v", err)
				continue
			}
			logger.Infof("user %s logged in", p.UserID)
		}
	}
}

// MessageHandler observes UserMessage events in a loop.
func MessageHandler(logger Logger) bus.Handler {
	return func(hc *bus.HandlerContext) {
		hc.SwitchToExecutor()
		for {
			p, err := bus.AwaitEvent[MessagePayload](hc, UserMessage)
			if err != nil {
				logger.Errorf("message handler: %v", err)
				continue
			}
			logger.Infof("message from %s: %s", p.From, p.Text)
		}
	}
}

// StatusHandler observes SystemStatus events in a loop.
func StatusHandler(logger Logger) bus.Handler {
	return func(hc *bus.HandlerContext) {
		hc.SwitchToExecutor()
		for {
			p, err := bus.AwaitEvent[StatusPayload](hc, SystemStatus)
			if err != nil {
				logger.Errorf("status handler: %v", err)
				continue
			}
			logger.Infof("system healthy=%v load=%.2f", p.Healthy, p.Load)
		}
	}
}
