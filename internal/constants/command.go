package constants

import "time"

// Default topics shared with the devices.
const (
	DefaultCommandsTopic = "commands"
	DefaultStatusTopic   = "device-status"
)

const (
	// DefaultPublishAttempts covers one broker-side idle disconnect per command.
	DefaultPublishAttempts = 2
	// DefaultWaitBudget bounds each connect, publish and response wait.
	DefaultWaitBudget = 5 * time.Second
	// DefaultPumpSlice is how long a single pump call may block.
	DefaultPumpSlice = 1 * time.Second
	// MaxStatusPayload is the largest status message the listener accepts.
	MaxStatusPayload = 64 * 1024
)

// Status lines shown to the operator.
const (
	StatusConnecting      = "Connecting..."
	StatusSending         = "Sending message..."
	StatusWaitingResponse = "Waiting for device response..."
	StatusReconnecting    = "Reconnecting..."
	StatusMessageFailed   = "Message failed"
	StatusNoResponse      = "Device did not respond"
	StatusUnreachable     = "Cannot reach MQTT broker: %v"
)
