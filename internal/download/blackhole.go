package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

// BlackholeClient drops fetched .torrent/.nzb payloads into a watch
// directory monitored by an external downloader, and considers the task
// completed once a matching entry appears in the completed directory.
// The task ID is the watch file's stem, so state survives restarts.
type BlackholeClient struct {
	watchDir     string
	completedDir string
	httpClient   *http.Client
	log          *slog.Logger
}

func NewBlackholeClient(watchDir, completedDir string, log *slog.Logger) *BlackholeClient {
	if log == nil {
		log = slog.Default()
	}
	return &BlackholeClient{
		watchDir:     watchDir,
		completedDir: completedDir,
		log:          log.With("component", "blackhole"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *BlackholeClient) Name() string { return "blackhole" }

// Add fetches the payload and writes it into the watch directory.
func (c *BlackholeClient) Add(ctx context.Context, sourceURL string) (string, error) {
	payload, filename, err := c.fetch(ctx, sourceURL)
	if err != nil {
		return "", err
	}

	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".torrent"
	}
	stem := strings.TrimSuffix(filename, ext)
	if stem == "" {
		stem = uuid.NewString()
	}

	if err := os.MkdirAll(c.watchDir, 0o755); err != nil {
		return "", fmt.Errorf("create watch dir: %w", err)
	}
	dest := filepath.Join(c.watchDir, stem+ext)
	if err := os.WriteFile(dest, payload, 0o644); err != nil {
		return "", fmt.Errorf("write watch file: %w", err)
	}

	c.log.Debug("payload dropped", "file", dest)
	return stem, nil
}

// Status reports completed once the completed directory holds an entry
// matching the task stem. While the watch file is still present, or the
// external downloader is working, the task counts as in progress.
func (c *BlackholeClient) Status(ctx context.Context, taskID string) (*ClientStatus, error) {
	entries, err := os.ReadDir(c.completedDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read completed dir: %w", err)
	}

	want := strings.ToLower(taskID)
	for _, entry := range entries {
		name := entry.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if entry.IsDir() {
			stem = name
		}
		if strings.ToLower(stem) == want {
			full := filepath.Join(c.completedDir, name)
			size := int64(0)
			if info, err := entry.Info(); err == nil {
				size = info.Size()
			}
			return &ClientStatus{
				TaskID:    taskID,
				Name:      name,
				Progress:  100,
				Size:      size,
				SavePath:  full,
				Completed: true,
			}, nil
		}
	}

	return &ClientStatus{TaskID: taskID, Name: taskID}, nil
}

// Remove deletes the watch file if the external downloader has not
// picked it up yet.
func (c *BlackholeClient) Remove(ctx context.Context, taskID string) error {
	matches, err := filepath.Glob(filepath.Join(c.watchDir, taskID+".*"))
	if err != nil {
		return fmt.Errorf("glob watch dir: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove watch file: %w", err)
		}
	}
	return nil
}

// fetch downloads the payload and determines a filename from the
// Content-Disposition header or the URL path.
func (c *BlackholeClient) fetch(ctx context.Context, sourceURL string) ([]byte, string, error) {
	var payload []byte
	var filename string

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("unexpected status: %d", resp.StatusCode))
			}

			payload, err = io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			filename = payloadFilename(resp.Header.Get("Content-Disposition"), sourceURL)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if retry.IsRecoverable(err) {
			return nil, "", fmt.Errorf("fetch payload: %w", ErrClientUnavailable)
		}
		return nil, "", err
	}
	return payload, filename, nil
}

func payloadFilename(contentDisposition, sourceURL string) string {
	if contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			if name := params["filename"]; name != "" {
				return filepath.Base(name)
			}
		}
	}
	if u, err := url.Parse(sourceURL); err == nil {
		if name := path.Base(u.Path); name != "" && name != "/" && name != "." {
			return name
		}
	}
	return ""
}
