package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogNotifier mirrors notifications into the global zerolog logger
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	var event *zerolog.Event
	switch n.Level {
	case LevelError:
		event = log.Error()
	case LevelWarning:
		event = log.Warn()
	default:
		event = log.Info()
	}
	event.Str("level_ui", string(n.Level)).Msg(n.Message)
}

// ConsoleNotifier prints notifications to a terminal, coloured by level
type ConsoleNotifier struct {
	out    io.Writer
	colors map[Level]*color.Color
}

func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{
		out: out,
		colors: map[Level]*color.Color{
			LevelInfo:    color.New(color.FgCyan),
			LevelSuccess: color.New(color.FgGreen),
			LevelWarning: color.New(color.FgYellow),
			LevelError:   color.New(color.FgRed),
		},
	}
}

func (c *ConsoleNotifier) Notify(n Notification) {
	if clr, ok := c.colors[n.Level]; ok {
		clr.Fprintf(c.out, "[%s] %s\n", n.Level, n.Message)
		return
	}
	fmt.Fprintf(c.out, "[%s] %s\n", n.Level, n.Message)
}
