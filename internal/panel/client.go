package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 60 * time.Second
	maxConditions  = 10
	maxErrorBody   = 512
)

// Config holds the panel service endpoint.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client implements Panel against a remote debate service that accepts a
// Brief and returns a Transcript.
type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
}

// NewClient constructs a Client if the supplied configuration is valid.
func NewClient(cfg Config) (*Client, error) {
	url := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if url == "" {
		return nil, ErrDisabled
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		apiKey:     strings.TrimSpace(cfg.APIKey),
	}, nil
}

// Enabled reports whether the client can make outbound calls.
func (c *Client) Enabled() bool {
	return c != nil && c.url != ""
}

// Deliberate posts the brief and returns the sanitized transcript.
func (c *Client) Deliberate(ctx context.Context, brief Brief) (Transcript, error) {
	if c == nil || !c.Enabled() {
		return Transcript{}, ErrDisabled
	}

	body, err := json.Marshal(brief)
	if err != nil {
		return Transcript{}, fmt.Errorf("marshal brief: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/deliberate", bytes.NewReader(body))
	if err != nil {
		return Transcript{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Transcript{}, fmt.Errorf("panel request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Transcript{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var transcript Transcript
	if err := json.NewDecoder(resp.Body).Decode(&transcript); err != nil {
		return Transcript{}, fmt.Errorf("decode transcript: %w", err)
	}
	if len(transcript.Conditions) == 0 {
		transcript.Conditions = ExtractConditions(transcript.Turns)
	}
	sanitize(&transcript)
	if len(transcript.Turns) == 0 && len(transcript.Conditions) == 0 {
		return Transcript{}, errors.New("panel returned an empty transcript")
	}
	transcript.Source = "remote"
	return transcript, nil
}

// Retryable reports whether err is a transient panel failure (429 or 5xx).
func Retryable(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= http.StatusInternalServerError
}

func sanitize(t *Transcript) {
	t.Rationale = strings.TrimSpace(t.Rationale)
	seen := make(map[string]struct{}, len(t.Conditions))
	out := make([]string, 0, len(t.Conditions))
	for _, c := range t.Conditions {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
		if len(out) == maxConditions {
			break
		}
	}
	t.Conditions = out
}
