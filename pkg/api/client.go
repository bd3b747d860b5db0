// Package api is a client for the device registry API the dashboard uses to
// list devices, resolve their file server and list saved videos.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ttl "github.com/FloatTech/ttl"
	"github.com/benmeehan/command-bridge/internal/models"
	"github.com/rs/zerolog"
)

// ErrUnexpectedStatus is returned for any non-2xx response the client does not handle.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Client talks to the device API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	devices    *ttl.Cache[string, *models.Device]
	logger     zerolog.Logger
}

// NewClient creates a client for baseURL. Device lookups are cached for cacheTTL.
func NewClient(baseURL string, timeout, cacheTTL time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		devices:    ttl.NewCache[string, *models.Device](cacheTTL),
		logger:     logger,
	}
}

// GetDevices returns the ids of all known devices.
func (c *Client) GetDevices(ctx context.Context) ([]string, error) {
	var devices []models.Device
	found, err := c.getJSON(ctx, "/devices", &devices)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	ids := make([]string, 0, len(devices))
	for _, device := range devices {
		ids = append(ids, device.ID)
		d := device
		c.devices.Set(d.ID, &d)
	}
	return ids, nil
}

// GetDevice returns the device with id, or nil if the API does not know it.
func (c *Client) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	if cached := c.devices.Get(id); cached != nil {
		return cached, nil
	}

	var device models.Device
	found, err := c.getJSON(ctx, "/devices/"+url.PathEscape(id), &device)
	if err != nil || !found {
		return nil, err
	}

	c.devices.Set(id, &device)
	return &device, nil
}

// GetDeviceFiles lists the videos saved on the device.
func (c *Client) GetDeviceFiles(ctx context.Context, id string) ([]models.DeviceFile, error) {
	var files []models.DeviceFile
	if _, err := c.getJSON(ctx, "/devices/"+url.PathEscape(id)+"/files", &files); err != nil {
		return nil, err
	}
	return files, nil
}

// getJSON decodes the response for path into v. It reports false for 404.
func (c *Client) getJSON(ctx context.Context, path string, v any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to query device API %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Debug().Str("path", path).Msg("Device API returned not found")
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return false, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return true, nil
}
