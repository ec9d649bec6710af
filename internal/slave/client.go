// Package slave talks to the appium launcher service running on every
// slave host in the fleet.
package slave

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"remote-device-manager/pkg/request"
)

// Port is the fixed port of the remote-slave appium launcher.
const Port = 5252

type CreateSessionRequest struct {
	DeviceID      string `json:"device_id"`
	ClearUserData bool   `json:"clear_user_data"`
	AppPackage    string `json:"app_package"`
}

type StopSessionRequest struct {
	DeviceID  string `json:"device_id"`
	IsAndroid bool   `json:"is_android"`
}

// Error describes a failed slave call: either the host was unreachable
// (Err set) or it replied with a non-success status.
type Error struct {
	SlaveAddr  string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("slave %s unreachable: %v", e.SlaveAddr, e.Err)
	}
	return fmt.Sprintf("slave %s replied with status %d: %s", e.SlaveAddr, e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error { return e.Err }

type Client interface {
	CreateSession(ctx context.Context, slaveAddr string, req CreateSessionRequest, requestID string) (string, error)
	StopSession(ctx context.Context, slaveAddr string, req StopSessionRequest, requestID string) error
}

type httpClient struct {
	client    *http.Client
	authToken string
	port      int
}

func NewClient(authToken string) Client {
	return &httpClient{
		client:    &http.Client{Timeout: 30 * time.Second},
		authToken: authToken,
		port:      Port,
	}
}

func (c *httpClient) CreateSession(ctx context.Context, slaveAddr string, req CreateSessionRequest, requestID string) (string, error) {
	url := fmt.Sprintf("http://%s:%d/remote-slave/appium/create", slaveAddr, c.port)

	body, err := c.post(ctx, slaveAddr, url, req, requestID)
	if err != nil {
		return "", err
	}

	// The launcher replies with the session URL, sometimes JSON-quoted.
	return strings.Trim(strings.TrimSpace(string(body)), `"`), nil
}

func (c *httpClient) StopSession(ctx context.Context, slaveAddr string, req StopSessionRequest, requestID string) error {
	url := fmt.Sprintf("http://%s:%d/remote-slave/appium/stop", slaveAddr, c.port)

	_, err := c.post(ctx, slaveAddr, url, req, requestID)
	return err
}

func (c *httpClient) post(ctx context.Context, slaveAddr, url string, payload interface{}, requestID string) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(request.HeaderAuth, c.authToken)
	if strings.TrimSpace(requestID) != "" {
		req.Header.Set(request.HeaderRequestID, requestID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{SlaveAddr: slaveAddr, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &Error{SlaveAddr: slaveAddr, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
