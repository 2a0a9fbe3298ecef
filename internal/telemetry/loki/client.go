// Package loki pushes security events to Grafana Loki.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultJob is the job label attached to every stream.
const DefaultJob = "aphinity-auth"

// ErrNoBaseURL is returned when the client has no Loki URL.
var ErrNoBaseURL = errors.New("loki: base URL is empty")

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // [timestamp_ns, line]
}

var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

// eventFields is the subset of a SecurityEvent read for labels and timestamp.
type eventFields struct {
	Type       string `json:"type"`
	Source     string `json:"source"`
	OccurredAt string `json:"occurred_at"`
}

// Client pushes log lines to one Loki instance.
type Client struct {
	BaseURL    string
	Job        string
	HTTPClient *http.Client
}

// NewClient returns a Client for baseURL (e.g. http://localhost:3100).
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		Job:        DefaultJob,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// PushEventJSON pushes a SecurityEvent JSON document (a Kafka message value). Event type and
// source become labels and occurred_at the entry timestamp. Unparseable input is pushed
// as-is with the current time. User ids stay in the line, never in labels.
func (c *Client) PushEventJSON(ctx context.Context, raw []byte) error {
	labels := map[string]string{}
	ts := time.Now().UTC()
	var fields eventFields
	if err := json.Unmarshal(raw, &fields); err == nil {
		if fields.Type != "" {
			labels["event_type"] = fields.Type
		}
		if fields.Source != "" {
			labels["source"] = fields.Source
		}
		if t, err := time.Parse(time.RFC3339Nano, fields.OccurredAt); err == nil {
			ts = t
		}
	}
	return c.Push(ctx, ts, string(raw), labels)
}

// Push sends one log line. Non-2xx responses are errors.
func (c *Client) Push(ctx context.Context, timestamp time.Time, line string, labels map[string]string) error {
	if c == nil || c.BaseURL == "" {
		return ErrNoBaseURL
	}
	job := c.Job
	if job == "" {
		job = DefaultJob
	}
	streamLabels := map[string]string{"job": job}
	for k, v := range labels {
		if s := labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_"); s != "" {
			streamLabels[k] = s
		}
	}
	payload, err := json.Marshal(PushRequest{Streams: []Stream{{
		Stream: streamLabels,
		Values: [][]string{{strconv.FormatInt(timestamp.UnixNano(), 10), line}},
	}}})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/loki/api/v1/push", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}
