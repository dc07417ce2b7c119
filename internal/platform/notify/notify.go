// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package notify carries user-facing notices from background work to whatever
surface is listening (the CLI log, the local API event stream).

Sends never block: when nobody drains the channel, notices are dropped and
only logged.
*/
package notify

import (
	"log/slog"
	"time"
)

// Level grades a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one message for the user.
type Notice struct {
	Level   Level     `json:"level"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifier is a buffered notice channel. The zero value drops everything.
type Notifier struct {
	notices chan Notice
	logger  *slog.Logger
}

// New creates a notifier holding up to size undelivered notices.
func New(size int, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{notices: make(chan Notice, size), logger: logger}
}

// Notices returns the receive side.
func (n *Notifier) Notices() <-chan Notice {
	if n == nil {
		return nil
	}
	return n.notices
}

// Send queues a notice, dropping it when the buffer is full.
func (n *Notifier) Send(level Level, source, message string) {
	if n == nil || n.notices == nil {
		return
	}
	notice := Notice{Level: level, Source: source, Message: message, Time: time.Now().UTC()}
	select {
	case n.notices <- notice:
	default:
		n.logger.Warn("notice_dropped", slog.String("source", source), slog.String("message", message))
	}
}

// Info is shorthand for Send(LevelInfo, ...).
func (n *Notifier) Info(source, message string) { n.Send(LevelInfo, source, message) }

// Warn is shorthand for Send(LevelWarning, ...).
func (n *Notifier) Warn(source, message string) { n.Send(LevelWarning, source, message) }

// Error is shorthand for Send(LevelError, ...).
func (n *Notifier) Error(source, message string) { n.Send(LevelError, source, message) }
