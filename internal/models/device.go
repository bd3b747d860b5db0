package models

import "strings"

// Device is the registry entry returned by the device API.
type Device struct {
	ID                string `json:"id"`
	FileServerAddress string `json:"file_server_address"`
}

// DeviceFile is a video saved on a device.
type DeviceFile struct {
	VideoName string `json:"video_name"`
}

// DownloadURL returns the link to a saved file on the device's file server.
func (d *Device) DownloadURL(file DeviceFile) string {
	return strings.TrimRight(d.FileServerAddress, "/") + "/" + file.VideoName
}
