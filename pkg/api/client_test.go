package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benmeehan/command-bridge/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, hits *int32) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/devices", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"cam-1","file_server_address":"http://10.0.0.5:8080"},{"id":"cam-2"}]`))
	})
	mux.HandleFunc("/devices/cam-1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Write([]byte(`{"id":"cam-1","file_server_address":"http://10.0.0.5:8080"}`))
	})
	mux.HandleFunc("/devices/cam-1/files", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"video_name":"a.mp4"},{"video_name":"b.mp4"}]`))
	})
	mux.HandleFunc("/devices/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClient_GetDevices(t *testing.T) {
	var hits int32
	server := newTestServer(t, &hits)
	client := NewClient(server.URL+"/", time.Second, time.Minute, zerolog.Nop())

	ids, err := client.GetDevices(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"cam-1", "cam-2"}, ids)
}

func TestClient_GetDevice_IsCached(t *testing.T) {
	var hits int32
	server := newTestServer(t, &hits)
	client := NewClient(server.URL, time.Second, time.Minute, zerolog.Nop())

	first, err := client.GetDevice(context.Background(), "cam-1")
	require.NoError(t, err)
	second, err := client.GetDevice(context.Background(), "cam-1")
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:8080", first.FileServerAddress)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClient_GetDevice_NotFound(t *testing.T) {
	var hits int32
	server := newTestServer(t, &hits)
	client := NewClient(server.URL, time.Second, time.Minute, zerolog.Nop())

	device, err := client.GetDevice(context.Background(), "unknown")

	assert.NoError(t, err)
	assert.Nil(t, device)
}

func TestClient_GetDevice_ServerError(t *testing.T) {
	var hits int32
	server := newTestServer(t, &hits)
	client := NewClient(server.URL, time.Second, time.Minute, zerolog.Nop())

	device, err := client.GetDevice(context.Background(), "broken")

	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Nil(t, device)
}

func TestClient_GetDeviceFiles(t *testing.T) {
	var hits int32
	server := newTestServer(t, &hits)
	client := NewClient(server.URL, time.Second, time.Minute, zerolog.Nop())

	files, err := client.GetDeviceFiles(context.Background(), "cam-1")

	require.NoError(t, err)
	assert.Equal(t, []models.DeviceFile{{VideoName: "a.mp4"}, {VideoName: "b.mp4"}}, files)

	device := &models.Device{FileServerAddress: "http://10.0.0.5:8080/"}
	assert.Equal(t, "http://10.0.0.5:8080/a.mp4", device.DownloadURL(files[0]))
}
