package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIClient talks to the server's REST surface. Authenticate first;
// the guest token is attached to every later request.
type APIClient struct {
	base  string
	http  *http.Client
	token string
}

// JoinInfo is what the server hands back for a room join.
type JoinInfo struct {
	RoomID      string   `json:"roomId"`
	URL         string   `json:"url"`
	Name        string   `json:"name"`
	STUNServers []string `json:"stunServers,omitempty"`
}

// Stats mirrors the server's occupancy counters.
type Stats struct {
	Rooms   int `json:"rooms"`
	Members int `json:"members"`
}

type apiError struct {
	Error string `json:"error"`
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// Authenticate obtains a guest token for the given display name and
// stores it for subsequent calls.
func (c *APIClient) Authenticate(ctx context.Context, name string) error {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/api/auth/guest", body, &out); err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

// JoinRoom asks the server for the signaling endpoint of a room.
func (c *APIClient) JoinRoom(ctx context.Context, room string) (JoinInfo, error) {
	var info JoinInfo
	err := c.do(ctx, http.MethodPost, "/api/rooms/"+room+"/join", nil, &info)
	return info, err
}

// ServerStats fetches current occupancy.
func (c *APIClient) ServerStats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, &stats)
	return stats, err
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
