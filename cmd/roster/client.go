package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/roster/pkg/domain"
)

// adminClient talks to the admin API of a running server.
type adminClient struct {
	base string
	http *http.Client
}

func newAdminClient(addr string) *adminClient {
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &adminClient{
		base: base,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *adminClient) ListSessions(ctx context.Context, user string) ([]domain.Info, error) {
	target := c.base + "/sessions"
	if user != "" {
		target += "?user=" + url.QueryEscape(user)
	}
	var infos []domain.Info
	err := c.do(ctx, http.MethodGet, target, &infos)
	return infos, err
}

func (c *adminClient) GetSession(ctx context.Context, id uint64) (domain.Info, error) {
	var info domain.Info
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/sessions/%d", c.base, id), &info)
	return info, err
}

func (c *adminClient) KillSession(ctx context.Context, id uint64) (domain.Info, error) {
	var info domain.Info
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/sessions/%d", c.base, id), &info)
	return info, err
}

func (c *adminClient) Stats(ctx context.Context) (domain.Stats, error) {
	var stats domain.Stats
	err := c.do(ctx, http.MethodGet, c.base+"/stats", &stats)
	return stats, err
}

func (c *adminClient) do(ctx context.Context, method, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("admin API unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(body))
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w", msg, domain.ErrSessionNotFound)
		}
		return fmt.Errorf("admin API returned %s: %s", resp.Status, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode admin response: %w", err)
	}
	return nil
}
