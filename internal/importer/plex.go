package importer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// PlexNotifier asks a Plex server to refresh all library sections.
type PlexNotifier struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger
}

func NewPlexNotifier(baseURL, token string, log *slog.Logger) *PlexNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &PlexNotifier{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		log:     log.With("component", "plex"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NotifyAll triggers a refresh of every library section.
func (p *PlexNotifier) NotifyAll(ctx context.Context) error {
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet,
				p.baseURL+"/library/sections/all/refresh", nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("X-Plex-Token", p.token)

			resp, err := p.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("unexpected status: %d", resp.StatusCode))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("plex refresh: %w", err)
	}
	p.log.Debug("library refresh triggered")
	return nil
}
