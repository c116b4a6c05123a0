package poster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/igwatch/igbot/internal/config"
)

func TestPostCreatesSessionThenRecord(t *testing.T) {
	t.Parallel()

	var sessions, records int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xrpc/com.atproto.server.createSession":
			sessions++
			var req sessionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "igbot.bsky.social", req.Identifier)
			json.NewEncoder(w).Encode(sessionResponse{AccessJWT: "jwt-1", DID: "did:plc:abc"})
		case "/xrpc/com.atproto.repo.createRecord":
			records++
			require.Equal(t, "Bearer jwt-1", r.Header.Get("Authorization"))
			var req createRecordRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "did:plc:abc", req.Repo)
			require.Equal(t, "app.bsky.feed.post", req.Collection)
			require.Equal(t, "hello from the audit desk", req.Record.Text)
			json.NewEncoder(w).Encode(createRecordResponse{URI: "at://did:plc:abc/app.bsky.feed.post/1"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	b := New(config.BlueskyConfig{
		Host:        srv.URL,
		Handle:      "igbot.bsky.social",
		AppPassword: "app-pass",
	}, zap.NewNop())

	uri, err := b.Post(context.Background(), "hello from the audit desk")
	require.NoError(t, err)
	require.Equal(t, "at://did:plc:abc/app.bsky.feed.post/1", uri)

	// Session is reused on subsequent posts.
	_, err = b.Post(context.Background(), "hello from the audit desk")
	require.NoError(t, err)
	require.Equal(t, 1, sessions)
	require.Equal(t, 2, records)
}

func TestPostFailsWithoutCredentials(t *testing.T) {
	t.Parallel()

	b := New(config.BlueskyConfig{Host: "https://bsky.social"}, zap.NewNop())
	_, err := b.Post(context.Background(), "text")
	require.Error(t, err)
}

func TestPostSurfacesAPIErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"AuthFactorTokenRequired"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	b := New(config.BlueskyConfig{
		Host:        srv.URL,
		Handle:      "igbot.bsky.social",
		AppPassword: "bad-pass",
	}, zap.NewNop())

	_, err := b.Post(context.Background(), "text")
	require.Error(t, err)
	require.Contains(t, err.Error(), "creating session")
}
