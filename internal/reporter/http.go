package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPSink posts events to a control-plane API.
type HTTPSink struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewHTTPSink returns a sink posting to baseURL/api/events.
func NewHTTPSink(baseURL, token string) *HTTPSink {
	return &HTTPSink{BaseURL: strings.TrimRight(baseURL, "/"), Token: token}
}

func (c *HTTPSink) post(ctx context.Context, path string, payload any) error {
	if c == nil || c.BaseURL == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("X-Worker-Token", c.Token)
	}
	cli := c.Client
	if cli == nil {
		cli = &http.Client{Timeout: 5 * time.Second}
	}
	resp, err := cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("post %s status %s", path, resp.Status)
	}
	return nil
}

func (c *HTTPSink) Publish(ctx context.Context, ev Event) error {
	return c.post(ctx, "/api/events", Stamp(ev))
}

func (c *HTTPSink) Close() error { return nil }
