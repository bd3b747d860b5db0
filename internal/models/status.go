package models

// StreamingAddressNone is what a device reports when it is not streaming.
const StreamingAddressNone = "N/A"

// StatusRecord is the latest self-reported state of one device, received on
// the device status topic.
type StatusRecord struct {
	DeviceID          string  `json:"device_id"`
	Time              string  `json:"time"`               // Observation timestamp as formatted by the device
	DeviceAddress     *string `json:"device_address"`     // Unset when the device has no public address configured
	StreamingAddress  string  `json:"streaming_address"`  // RTSP URL, or "N/A"
	SaveCurrentFiles  any     `json:"save_current_files"` // Count or flag, passed through untouched
	InferenceRuntime  string  `json:"inference_runtime"`
	FileserverRuntime string  `json:"fileserver_runtime"`
}

// HasDeviceAddress reports whether download and streaming links can be built.
func (s *StatusRecord) HasDeviceAddress() bool {
	return s.DeviceAddress != nil && *s.DeviceAddress != ""
}

// IsStreaming reports whether the device advertised a live stream.
func (s *StatusRecord) IsStreaming() bool {
	return s.StreamingAddress != "" && s.StreamingAddress != StreamingAddressNone
}
