package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

// HTTPClient downloads releases directly over HTTP into a spool
// directory. Useful for direct-download indexers where no external
// downloader is involved.
type HTTPClient struct {
	spoolDir   string
	httpClient *http.Client
	log        *slog.Logger

	mu    sync.Mutex
	tasks map[string]*httpTask
}

type httpTask struct {
	name      string
	path      string
	size      int64
	completed bool
	failed    bool
	message   string
	cancel    context.CancelFunc
}

func NewHTTPClient(spoolDir string, log *slog.Logger) *HTTPClient {
	if log == nil {
		log = slog.Default()
	}
	return &HTTPClient{
		spoolDir: spoolDir,
		log:      log.With("component", "httpfetch"),
		httpClient: &http.Client{
			Timeout: 0, // per-task context handles cancellation
		},
		tasks: make(map[string]*httpTask),
	}
}

func (c *HTTPClient) Name() string { return "http" }

// Add starts fetching the URL in the background and returns immediately.
func (c *HTTPClient) Add(ctx context.Context, sourceURL string) (string, error) {
	if err := os.MkdirAll(c.spoolDir, 0o755); err != nil {
		return "", fmt.Errorf("create spool dir: %w", err)
	}

	taskID := uuid.NewString()
	filename := payloadFilename("", sourceURL)
	if filename == "" {
		filename = taskID
	}
	dest := filepath.Join(c.spoolDir, taskID+"-"+filename)

	fetchCtx, cancel := context.WithCancel(context.Background())
	task := &httpTask{name: filename, path: dest, cancel: cancel}

	c.mu.Lock()
	c.tasks[taskID] = task
	c.mu.Unlock()

	go c.run(fetchCtx, taskID, sourceURL, dest)

	c.log.Debug("fetch started", "task_id", taskID, "dest", dest)
	return taskID, nil
}

func (c *HTTPClient) run(ctx context.Context, taskID, sourceURL, dest string) {
	err := retry.Do(
		func() error { return c.fetchOnce(ctx, sourceURL, dest) },
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(2*time.Second),
		retry.LastErrorOnly(true),
	)

	c.mu.Lock()
	defer c.mu.Unlock()
	task, ok := c.tasks[taskID]
	if !ok {
		return
	}
	if err != nil {
		task.failed = true
		task.message = err.Error()
		c.log.Warn("fetch failed", "task_id", taskID, "error", err)
		return
	}
	if info, err := os.Stat(dest); err == nil {
		task.size = info.Size()
	}
	task.completed = true
	c.log.Debug("fetch complete", "task_id", taskID)
}

func (c *HTTPClient) fetchOnce(ctx context.Context, sourceURL, dest string) error {
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

	tmp := dest + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("create spool file: %w", err))
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close spool file: %w", err)
	}
	return os.Rename(tmp, dest)
}

// Status reports the in-memory task state. Tasks are forgotten on
// restart; unknown IDs report ErrTaskNotFound so the download fails and
// can be retried.
func (c *HTTPClient) Status(ctx context.Context, taskID string) (*ClientStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, ok := c.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}

	status := &ClientStatus{
		TaskID:    taskID,
		Name:      task.name,
		Size:      task.size,
		SavePath:  task.path,
		Completed: task.completed,
		Failed:    task.failed,
		Message:   task.message,
	}
	if task.completed {
		status.Progress = 100
	}
	return status, nil
}

// Remove cancels the fetch and deletes the spooled file.
func (c *HTTPClient) Remove(ctx context.Context, taskID string) error {
	c.mu.Lock()
	task, ok := c.tasks[taskID]
	delete(c.tasks, taskID)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	task.cancel()
	if err := os.Remove(task.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove spool file: %w", err)
	}
	return nil
}
