package panel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientDeliberate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/deliberate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		var brief Brief
		if err := json.NewDecoder(r.Body).Decode(&brief); err != nil || brief.PitchID != "p-1" {
			t.Errorf("bad brief %+v: %v", brief, err)
		}
		_ = json.NewEncoder(w).Encode(Transcript{
			Turns: []Turn{
				{Speaker: "Lead VC", Content: "Strong team. Investment is subject to a clean IP assignment."},
				{Speaker: "Skeptic", Content: "Churn worries me"},
				{Speaker: "Counsel", Content: "Closing contingent on audited financials"},
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL + "/", APIKey: "secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	transcript, err := client.Deliberate(context.Background(), Brief{PitchID: "p-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transcript.Conditions) != 2 {
		t.Fatalf("expected 2 extracted conditions got %v", transcript.Conditions)
	}
	if transcript.Conditions[0] != "Investment is subject to a clean IP assignment" {
		t.Fatalf("unexpected condition %q", transcript.Conditions[0])
	}
	if transcript.Source != "remote" {
		t.Fatalf("expected remote source got %s", transcript.Source)
	}
}

func TestClientStatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"unavailable", http.StatusServiceUnavailable, true},
		{"bad request", http.StatusBadRequest, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer srv.Close()

			client, _ := NewClient(Config{URL: srv.URL})
			_, err := client.Deliberate(context.Background(), Brief{})
			var statusErr *StatusError
			if !errors.As(err, &statusErr) || statusErr.Code != tc.status {
				t.Fatalf("expected status error %d got %v", tc.status, err)
			}
			if Retryable(err) != tc.retryable {
				t.Fatalf("expected retryable=%v", tc.retryable)
			}
		})
	}
}

func TestNewClientDisabledWithoutURL(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled got %v", err)
	}
}

func TestSanitizeConditions(t *testing.T) {
	transcript := Transcript{Conditions: []string{"Board seat", " board seat ", "", "Pro-rata rights"}, Rationale: "  ok "}
	sanitize(&transcript)
	if len(transcript.Conditions) != 2 || transcript.Conditions[1] != "Pro-rata rights" {
		t.Fatalf("expected deduplicated conditions got %v", transcript.Conditions)
	}
	if transcript.Rationale != "ok" {
		t.Fatalf("expected trimmed rationale got %q", transcript.Rationale)
	}

	var disabled *Client
	if disabled.Enabled() {
		t.Fatalf("expected nil client disabled")
	}
}
