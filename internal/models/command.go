package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownCommand is returned when a command string is not part of the supported set.
var ErrUnknownCommand = errors.New("unknown command")

// Command identifies an action the operator asks a device to perform.
type Command string

const (
	CommandSaveFile          Command = "save_file"
	CommandStreamingStart    Command = "streaming_start"
	CommandStreamingStop     Command = "streaming_stop"
	CommandInferenceRestart  Command = "inference_restart"
	CommandFileserverRestart Command = "fileserver_restart"
	CommandStatusRequest     Command = "status_request"
)

// Commands lists every supported command in the order the dashboard shows them.
var Commands = []Command{
	CommandStatusRequest,
	CommandSaveFile,
	CommandStreamingStart,
	CommandStreamingStop,
	CommandFileserverRestart,
	CommandInferenceRestart,
}

// Valid reports whether c is one of the supported commands.
func (c Command) Valid() bool {
	for _, known := range Commands {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCommand converts a wire string into a Command.
func ParseCommand(s string) (Command, error) {
	c := Command(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
	return c, nil
}

// CommandEnvelope is published on the commands topic. DeviceID is the addressee.
type CommandEnvelope struct {
	DeviceID string  `json:"device_id"`
	Command  Command `json:"command"`
}

// CommandOutcome is the last command sent to a device and the status line
// the round-trip ended on.
type CommandOutcome struct {
	DeviceID  string    `json:"device_id"`
	Command   Command   `json:"command"`
	Result    string    `json:"result"`
	Responded bool      `json:"responded"`
	SentAt    time.Time `json:"sent_at"`
}
