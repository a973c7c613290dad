package musicbrainz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"tunesync/internal/core"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(core.MusicBrainzConfig{
		BaseURL:   srv.URL,
		UserAgent: "tunesync-test/1.0",
	}, zap.NewNop())
	return client, srv
}

func TestClient_IDFromISRC(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/isrc/GBAYE9700164" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"recordings":[{"id":"ff06cbeb-62ba-4bd6-a18a-a5a06ffe7dfb","title":"Karma Police"}]}`))
	})

	ctx := context.Background()
	if got := client.IDFromISRC(ctx, "GBAYE9700164"); got != "ff06cbeb-62ba-4bd6-a18a-a5a06ffe7dfb" {
		t.Errorf("IDFromISRC = %q", got)
	}

	// Second lookup is served from the LRU.
	client.IDFromISRC(ctx, "GBAYE9700164")
	if calls.Load() != 1 {
		t.Errorf("http calls = %d, want 1", calls.Load())
	}
}

func TestClient_IDFromQuery(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		if query == "" {
			t.Error("missing query parameter")
		}
		if r.URL.Query().Get("limit") != "1" {
			t.Errorf("limit = %q, want 1", r.URL.Query().Get("limit"))
		}
		w.Write([]byte(`{"recordings":[{"id":"4fd8f3e9-3f4f-4a06-9e4d-68cd6e0d24a3"}]}`))
	})

	got := client.IDFromQuery(context.Background(), "Radiohead", "Karma Police", 1997, "")
	if got != "4fd8f3e9-3f4f-4a06-9e4d-68cd6e0d24a3" {
		t.Errorf("IDFromQuery = %q", got)
	}
}

func TestClient_FailuresSwallowedToEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"Server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}},
		{"Malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}},
		{"No recordings", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"recordings":[]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, tt.handler)
			if got := client.IDFromISRC(context.Background(), "USRC17607839"); got != "" {
				t.Errorf("IDFromISRC = %q, want empty", got)
			}
			if got := client.IDFromQuery(context.Background(), "a", "b", 0, ""); got != "" {
				t.Errorf("IDFromQuery = %q, want empty", got)
			}
		})
	}
}

func TestClient_EmptyInputsShortCircuit(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty inputs")
	})

	if got := client.IDFromISRC(context.Background(), ""); got != "" {
		t.Errorf("IDFromISRC(\"\") = %q", got)
	}
	if got := client.IDFromQuery(context.Background(), "", "", 0, ""); got != "" {
		t.Errorf("IDFromQuery with no fields = %q", got)
	}
}
