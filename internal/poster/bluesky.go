// Package poster publishes report posts to Bluesky over the atproto XRPC API.
package poster

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

	"go.uber.org/zap"

	"github.com/igwatch/igbot/internal/config"
	"github.com/igwatch/igbot/internal/metrics"
)

// Bluesky posts records on behalf of a single account. A session is created
// lazily on the first post and reused for the rest of the run.
type Bluesky struct {
	host        string
	handle      string
	appPassword string
	httpClient  *http.Client
	logger      *zap.Logger

	accessJWT string
	did       string
}

// New builds a client from configuration.
func New(cfg config.BlueskyConfig, logger *zap.Logger) *Bluesky {
	return &Bluesky{
		host:        strings.TrimRight(cfg.Host, "/"),
		handle:      cfg.Handle,
		appPassword: cfg.AppPassword,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

type sessionRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type sessionResponse struct {
	AccessJWT string `json:"accessJwt"`
	DID       string `json:"did"`
}

type postRecord struct {
	Type      string `json:"$type"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

type createRecordRequest struct {
	Repo       string     `json:"repo"`
	Collection string     `json:"collection"`
	Record     postRecord `json:"record"`
}

type createRecordResponse struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// Post publishes the text and returns the at:// URI of the new record.
func (b *Bluesky) Post(ctx context.Context, text string) (string, error) {
	if b.handle == "" || b.appPassword == "" {
		return "", errors.New("bluesky credentials not configured")
	}
	if b.accessJWT == "" {
		if err := b.createSession(ctx); err != nil {
			return "", err
		}
	}

	req := createRecordRequest{
		Repo:       b.did,
		Collection: "app.bsky.feed.post",
		Record: postRecord{
			Type:      "app.bsky.feed.post",
			Text:      text,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}
	var resp createRecordResponse
	if err := b.xrpc(ctx, "com.atproto.repo.createRecord", req, &resp); err != nil {
		return "", fmt.Errorf("creating post: %w", err)
	}
	metrics.PostsPublished.Inc()
	b.logger.Info("published post", zap.String("uri", resp.URI))
	return resp.URI, nil
}

func (b *Bluesky) createSession(ctx context.Context) error {
	var resp sessionResponse
	err := b.xrpc(ctx, "com.atproto.server.createSession",
		sessionRequest{Identifier: b.handle, Password: b.appPassword}, &resp)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	if resp.AccessJWT == "" || resp.DID == "" {
		return errors.New("session response missing token or did")
	}
	b.accessJWT = resp.AccessJWT
	b.did = resp.DID
	return nil
}

func (b *Bluesky) xrpc(ctx context.Context, method string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.host+"/xrpc/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.accessJWT != "" {
		req.Header.Set("Authorization", "Bearer "+b.accessJWT)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: %s", method, resp.Status, strings.TrimSpace(string(detail)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", method, err)
		}
	}
	return nil
}
