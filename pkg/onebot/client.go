package onebot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/a2bot/relay/pkg/debug"
)

// apiTimeout bounds a single API round trip. The front-end runs on the
// same host or LAN, so anything slower is treated as a failure.
const apiTimeout = 10 * time.Second

// ClientConfig holds the connection settings for the OneBot HTTP API.
type ClientConfig struct {
	// APIURL is the API root, e.g. "http://127.0.0.1:3000".
	APIURL string

	// AccessToken, when set, is sent as a bearer token.
	AccessToken string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls the OneBot HTTP API.
type Client struct {
	apiURL string
	token  string
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates an API client. The API URL is normalized by
// stripping any trailing slash.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		token:  cfg.AccessToken,
		http:   httpClient,
		logger: logger,
	}
}

// SendPrivateMsg sends a message to a user.
func (c *Client) SendPrivateMsg(ctx context.Context, userID int64, msg Message) error {
	return c.call(ctx, "send_private_msg", struct {
		UserID  int64   `json:"user_id"`
		Message Message `json:"message"`
	}{userID, msg})
}

// SendGroupMsg sends a message to a group.
func (c *Client) SendGroupMsg(ctx context.Context, groupID int64, msg Message) error {
	return c.call(ctx, "send_group_msg", struct {
		GroupID int64   `json:"group_id"`
		Message Message `json:"message"`
	}{groupID, msg})
}

// SendGroupForwardMsg sends a combined forward message built from
// custom nodes to a group.
func (c *Client) SendGroupForwardMsg(ctx context.Context, groupID int64, nodes []Segment) error {
	return c.call(ctx, "send_group_forward_msg", struct {
		GroupID  int64     `json:"group_id"`
		Messages []Segment `json:"messages"`
	}{groupID, nodes})
}

// apiResponse is the envelope every API action answers with.
type apiResponse struct {
	Status  string `json:"status"`
	Retcode int    `json:"retcode"`
	Msg     string `json:"msg"`
	Wording string `json:"wording"`
}

func (c *Client) call(ctx context.Context, action string, params any) error {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding %s params: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/"+action, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	debug.Log("onebot", "api call", "action", action)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("calling %s: unexpected status %d", action, resp.StatusCode)
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decoding %s response: %w", action, err)
	}
	if out.Retcode != 0 {
		msg := out.Msg
		if out.Wording != "" {
			msg = out.Wording
		}
		return fmt.Errorf("%s rejected: retcode %d (%s)", action, out.Retcode, msg)
	}
	return nil
}
