// Package justaddpower drives Just Add Power transmitters and receivers over
// their HTTP API. Every reply is a JSON envelope {"data": ...}.
package justaddpower

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"venue-panel/internal/domain"
	"venue-panel/internal/infra"
)

const (
	pathModel   = "/cgi-bin/api/details/device/model"
	pathChannel = "/cgi-bin/api/details/channel"
	pathVolume  = "/cgi-bin/api/details/audio/volume"
	cmdChannel  = "/cgi-bin/api/command/channel"
	cmdVolume   = "/cgi-bin/api/command/audio/volume"
	cmdCLI      = "/cgi-bin/api/command/cli"

	ack = "OK"
)

type Client struct {
	httpClient *http.Client
	retry      infra.RetryConfig
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retry:      infra.DeviceRetryConfig(),
	}
}

// NewClientWithRetry is used by tests to shorten backoff.
func NewClientWithRetry(timeout time.Duration, retry infra.RetryConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
	}
}

func (c *Client) GetModel(ctx context.Context, address string) (string, error) {
	data, err := c.doRequest(ctx, http.MethodGet, address, pathModel, "")
	if err != nil {
		return "", fmt.Errorf("fetching model: %w", err)
	}

	var model string
	if err := json.Unmarshal(data, &model); err != nil || model == "" {
		return "", fmt.Errorf("parsing model %s: %w", string(data), domain.ErrUnexpectedResponse)
	}
	return model, nil
}

func (c *Client) GetChannel(ctx context.Context, address string) (int, error) {
	data, err := c.doRequest(ctx, http.MethodGet, address, pathChannel, "")
	if err != nil {
		return 0, fmt.Errorf("fetching channel: %w", err)
	}

	channel, ok := decodeInt(data)
	if !ok {
		return 0, fmt.Errorf("parsing channel %s: %w", string(data), domain.ErrUnexpectedResponse)
	}
	return channel, nil
}

func (c *Client) SetChannel(ctx context.Context, address string, channel int) (bool, error) {
	data, err := c.doRequest(ctx, http.MethodPost, address, cmdChannel, strconv.Itoa(channel))
	if err != nil {
		return false, fmt.Errorf("setting channel: %w", err)
	}
	return acknowledged(data), nil
}

func (c *Client) GetVolume(ctx context.Context, address string) (*int, error) {
	data, err := c.doRequest(ctx, http.MethodGet, address, pathVolume, "")
	if err != nil {
		return nil, fmt.Errorf("fetching volume: %w", err)
	}

	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	volume, ok := decodeInt(data)
	if !ok {
		return nil, fmt.Errorf("parsing volume %s: %w", string(data), domain.ErrUnexpectedResponse)
	}
	return &volume, nil
}

func (c *Client) SetVolume(ctx context.Context, address string, level int) (bool, error) {
	data, err := c.doRequest(ctx, http.MethodPost, address, cmdVolume, strconv.Itoa(level))
	if err != nil {
		return false, fmt.Errorf("setting volume: %w", err)
	}
	return acknowledged(data), nil
}

func (c *Client) SendGateCommand(ctx context.Context, address string, gate domain.GateKind, state domain.GateState) (bool, error) {
	command, err := GateCommand(gate, state)
	if err != nil {
		return false, err
	}

	data, err := c.doRequest(ctx, http.MethodPost, address, cmdCLI, command)
	if err != nil {
		return false, fmt.Errorf("sending %q: %w", command, err)
	}
	return acknowledged(data), nil
}

// GateCommand is the CLI line that moves gate to state. GateOff always
// silences the output.
func GateCommand(gate domain.GateKind, state domain.GateState) (string, error) {
	switch gate {
	case domain.GateDSPLine:
		return "audio dsp line " + state.String(), nil
	case domain.GateDSPHDMI:
		return "audio dsp hdmi " + state.String(), nil
	case domain.GateHDMIMute:
		return "audio hdmi " + muteWord(state), nil
	case domain.GateStereoMute:
		return "audio stereo " + muteWord(state), nil
	default:
		return "", fmt.Errorf("unknown audio gate %q", gate)
	}
}

func muteWord(state domain.GateState) string {
	if state == domain.GateOn {
		return "unmute"
	}
	return "mute"
}

func (c *Client) doRequest(ctx context.Context, method, address, path, body string) (json.RawMessage, error) {
	var data json.RawMessage

	retryErr := infra.WithRetry(ctx, c.retry, func() error {
		var bodyReader io.Reader
		if body != "" {
			bodyReader = strings.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, deviceURL(address, path), bodyReader)
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating request: %w", err))
		}
		if body != "" {
			req.Header.Set("Content-Type", "text/plain")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrDeviceUnreachable, address, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if err != nil {
			return fmt.Errorf("%w: reading response from %s: %v", domain.ErrDeviceUnreachable, address, err)
		}

		if infra.IsRetryableHTTPStatus(resp.StatusCode) {
			return fmt.Errorf("%w: status %d (retryable): %s", domain.ErrUnexpectedResponse, resp.StatusCode, bytes.TrimSpace(respBody))
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return infra.Permanent(fmt.Errorf("%w: status %d: %s", domain.ErrUnexpectedResponse, resp.StatusCode, bytes.TrimSpace(respBody)))
		}

		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			return infra.Permanent(fmt.Errorf("%w: decoding body: %v", domain.ErrUnexpectedResponse, err))
		}

		data = envelope.Data
		return nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	return data, nil
}

func deviceURL(address, path string) string {
	if strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://") {
		return strings.TrimSuffix(address, "/") + path
	}
	return "http://" + address + path
}

// decodeInt accepts both 5 and "5"; older firmware quotes numbers.
func decodeInt(data json.RawMessage) (int, bool) {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

func acknowledged(data json.RawMessage) bool {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return false
	}
	return strings.Contains(s, ack)
}
