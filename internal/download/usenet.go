package download

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// UsenetClient talks to a SABnzbd-compatible API.
type UsenetClient struct {
	baseURL    string
	apiKey     string
	category   string
	httpClient *http.Client
	log        *slog.Logger
}

func NewUsenetClient(baseURL, apiKey, category string, log *slog.Logger) *UsenetClient {
	if log == nil {
		log = slog.Default()
	}
	return &UsenetClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   apiKey,
		category: category,
		log:      log.With("component", "usenet"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *UsenetClient) Name() string { return "sabnzbd" }

// Add sends an NZB URL and returns the assigned nzo_id.
func (c *UsenetClient) Add(ctx context.Context, nzbURL string) (string, error) {
	params := url.Values{
		"apikey": {c.apiKey},
		"output": {"json"},
		"mode":   {"addurl"},
		"name":   {nzbURL},
		"cat":    {c.category},
	}

	var resp sabAddResponse
	if err := c.doRequest(ctx, "addurl", params, &resp); err != nil {
		return "", err
	}
	if !resp.Status {
		if isAPIKeyError(resp.Error) {
			return "", ErrInvalidAPIKey
		}
		return "", fmt.Errorf("sabnzbd add failed: %s", resp.Error)
	}
	if len(resp.NzoIDs) == 0 {
		return "", fmt.Errorf("sabnzbd returned no nzo_id")
	}

	c.log.Debug("nzb added", "nzo_id", resp.NzoIDs[0])
	return resp.NzoIDs[0], nil
}

// Status checks the queue first, then history.
func (c *UsenetClient) Status(ctx context.Context, taskID string) (*ClientStatus, error) {
	queueItems, err := c.getQueue(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range queueItems {
		if item.TaskID == taskID {
			return item, nil
		}
	}

	historyItems, err := c.getHistory(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range historyItems {
		if item.TaskID == taskID {
			return item, nil
		}
	}

	return nil, fmt.Errorf("nzo %s: %w", taskID, ErrTaskNotFound)
}

// Remove deletes the task from the queue.
func (c *UsenetClient) Remove(ctx context.Context, taskID string) error {
	params := url.Values{
		"apikey":    {c.apiKey},
		"output":    {"json"},
		"mode":      {"queue"},
		"name":      {"delete"},
		"value":     {taskID},
		"del_files": {"1"},
	}

	var resp sabStatusResponse
	if err := c.doRequest(ctx, "queue/delete", params, &resp); err != nil {
		return err
	}
	if !resp.Status {
		return fmt.Errorf("sabnzbd remove failed")
	}
	return nil
}

func (c *UsenetClient) getQueue(ctx context.Context) ([]*ClientStatus, error) {
	params := url.Values{
		"apikey": {c.apiKey},
		"output": {"json"},
		"mode":   {"queue"},
	}

	var resp sabQueueResponse
	if err := c.doRequest(ctx, "queue", params, &resp); err != nil {
		return nil, err
	}

	items := make([]*ClientStatus, 0, len(resp.Queue.Slots))
	for i := range resp.Queue.Slots {
		slot := &resp.Queue.Slots[i]
		items = append(items, &ClientStatus{
			TaskID:   slot.NzoID,
			Name:     slot.Filename,
			Progress: parseFloat(slot.Percentage),
			Size:     int64(parseFloat(slot.MB) * 1024 * 1024),
		})
	}
	return items, nil
}

func (c *UsenetClient) getHistory(ctx context.Context) ([]*ClientStatus, error) {
	params := url.Values{
		"apikey": {c.apiKey},
		"output": {"json"},
		"mode":   {"history"},
	}

	var resp sabHistoryResponse
	if err := c.doRequest(ctx, "history", params, &resp); err != nil {
		return nil, err
	}

	items := make([]*ClientStatus, 0, len(resp.History.Slots))
	for _, slot := range resp.History.Slots {
		items = append(items, &ClientStatus{
			TaskID:    slot.NzoID,
			Name:      slot.Name,
			Progress:  100,
			Size:      slot.Bytes,
			SavePath:  slot.Storage,
			Completed: slot.Status == "Completed",
			Failed:    slot.Status == "Failed",
			Message:   slot.FailMessage,
		})
	}
	return items, nil
}

// doRequest performs one API call with bounded retries on transport
// errors. HTTP-level failures (bad status, bad JSON) are not retried.
func (c *UsenetClient) doRequest(ctx context.Context, mode string, params url.Values, result any) error {
	reqURL := c.baseURL + "/api?" + params.Encode()

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
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
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if retry.IsRecoverable(err) {
			c.log.Debug("api request failed", "mode", mode, "error", err)
			return fmt.Errorf("%s: %w", mode, ErrClientUnavailable)
		}
		return err
	}
	return nil
}

type sabAddResponse struct {
	Status bool     `json:"status"`
	NzoIDs []string `json:"nzo_ids"`
	Error  string   `json:"error"`
}

type sabStatusResponse struct {
	Status bool `json:"status"`
}

type sabQueueResponse struct {
	Queue struct {
		Slots []sabQueueSlot `json:"slots"`
	} `json:"queue"`
}

type sabQueueSlot struct {
	NzoID      string `json:"nzo_id"`
	Filename   string `json:"filename"`
	Percentage string `json:"percentage"`
	MB         string `json:"mb"`
}

type sabHistoryResponse struct {
	History struct {
		Slots []sabHistorySlot `json:"slots"`
	} `json:"history"`
}

type sabHistorySlot struct {
	NzoID       string `json:"nzo_id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Bytes       int64  `json:"bytes"`
	Storage     string `json:"storage"`
	FailMessage string `json:"fail_message"`
}

func isAPIKeyError(errMsg string) bool {
	lower := strings.ToLower(errMsg)
	return strings.Contains(lower, "api key") || strings.Contains(lower, "apikey")
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
