package download

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

// TorrentClient talks to a qBittorrent-compatible WebUI API.
//
// qBittorrent does not return the torrent hash on add, so each add is
// tagged with a unique label and the hash is looked up by that tag. The
// tag stays on the torrent and doubles as our task ID.
type TorrentClient struct {
	baseURL    string
	username   string
	password   string
	category   string
	httpClient *http.Client
	log        *slog.Logger
}

func NewTorrentClient(baseURL, username, password, category string, log *slog.Logger) *TorrentClient {
	if log == nil {
		log = slog.Default()
	}
	jar, _ := cookiejar.New(nil)
	return &TorrentClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		password: password,
		category: category,
		log:      log.With("component", "torrent"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
	}
}

func (c *TorrentClient) Name() string { return "qbittorrent" }

// login authenticates and stores the session cookie in the jar.
func (c *TorrentClient) login(ctx context.Context) error {
	form := url.Values{
		"username": {c.username},
		"password": {c.password},
	}
	body, err := c.postForm(ctx, "/api/v2/auth/login", form)
	if err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(body), "Ok.") {
		return ErrInvalidAPIKey
	}
	return nil
}

// Add hands a torrent URL or magnet link to the client.
func (c *TorrentClient) Add(ctx context.Context, torrentURL string) (string, error) {
	if err := c.login(ctx); err != nil {
		return "", err
	}

	tag := "mydia-" + uuid.NewString()
	form := url.Values{
		"urls":     {torrentURL},
		"category": {c.category},
		"tags":     {tag},
	}
	body, err := c.postForm(ctx, "/api/v2/torrents/add", form)
	if err != nil {
		return "", err
	}
	if strings.Contains(body, "Fails") {
		return "", fmt.Errorf("qbittorrent add failed: %s", body)
	}

	c.log.Debug("torrent added", "tag", tag)
	return tag, nil
}

// Status looks the torrent up by its tag.
func (c *TorrentClient) Status(ctx context.Context, taskID string) (*ClientStatus, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	body, err := c.get(ctx, "/api/v2/torrents/info?tag="+url.QueryEscape(taskID))
	if err != nil {
		return nil, err
	}

	var torrents []qbTorrent
	if err := json.Unmarshal([]byte(body), &torrents); err != nil {
		return nil, fmt.Errorf("decode torrents: %w", err)
	}
	if len(torrents) == 0 {
		return nil, fmt.Errorf("tag %s: %w", taskID, ErrTaskNotFound)
	}

	t := torrents[0]
	status := &ClientStatus{
		TaskID:   taskID,
		Name:     t.Name,
		Progress: t.Progress * 100,
		Size:     t.Size,
		SavePath: t.ContentPath,
	}
	switch t.State {
	case "uploading", "stalledUP", "pausedUP", "queuedUP", "forcedUP", "checkingUP":
		status.Completed = true
	case "error", "missingFiles":
		status.Failed = true
		status.Message = "torrent in state " + t.State
	}
	return status, nil
}

// Remove deletes the torrent and its files.
func (c *TorrentClient) Remove(ctx context.Context, taskID string) error {
	if err := c.login(ctx); err != nil {
		return err
	}

	body, err := c.get(ctx, "/api/v2/torrents/info?tag="+url.QueryEscape(taskID))
	if err != nil {
		return err
	}
	var torrents []qbTorrent
	if err := json.Unmarshal([]byte(body), &torrents); err != nil {
		return fmt.Errorf("decode torrents: %w", err)
	}
	if len(torrents) == 0 {
		return nil
	}

	form := url.Values{
		"hashes":      {torrents[0].Hash},
		"deleteFiles": {"true"},
	}
	_, err = c.postForm(ctx, "/api/v2/torrents/delete", form)
	return err
}

type qbTorrent struct {
	Hash        string  `json:"hash"`
	Name        string  `json:"name"`
	State       string  `json:"state"`
	Progress    float64 `json:"progress"` // 0-1
	Size        int64   `json:"size"`
	ContentPath string  `json:"content_path"`
}

func (c *TorrentClient) postForm(ctx context.Context, path string, form url.Values) (string, error) {
	return c.do(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
}

func (c *TorrentClient) get(ctx context.Context, path string) (string, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *TorrentClient) do(ctx context.Context, method, path string, reqBody *strings.Reader) (string, error) {
	var body string
	err := retry.Do(
		func() error {
			var rd io.Reader
			if reqBody != nil {
				if _, err := reqBody.Seek(0, io.SeekStart); err != nil {
					return retry.Unrecoverable(err)
				}
				rd = reqBody
			}
			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			if method == http.MethodPost {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode == http.StatusForbidden {
				return retry.Unrecoverable(ErrInvalidAPIKey)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("unexpected status: %d", resp.StatusCode))
			}

			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			body = string(raw)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if retry.IsRecoverable(err) {
			c.log.Debug("api request failed", "path", path, "error", err)
			return "", fmt.Errorf("%s: %w", path, ErrClientUnavailable)
		}
		return "", err
	}
	return body, nil
}
