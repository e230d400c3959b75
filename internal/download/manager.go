package download

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mydia/mydia/internal/events"
)

// Request carries everything needed to initiate a download.
type Request struct {
	Title     string
	SourceURL string
	Indexer   string
	ClientTag string // torrent|usenet|blackhole|http, empty uses default

	MediaItemID   *int64
	EpisodeID     *int64
	LibraryPathID *int64

	SeasonPack       bool
	PackSeason       *int
	PackEpisodeCount *int
	PackEpisodeIDs   []int64
}

// ImportScheduler enqueues the import job for a completed download.
type ImportScheduler interface {
	ScheduleImport(ctx context.Context, downloadID int64) error
}

// Manager orchestrates downloads: it records them, hands them to the
// right client and keeps their status in sync.
type Manager struct {
	store    *Store
	resolver *Resolver
	imports  ImportScheduler
	bus      *events.Bus
	log      *slog.Logger
}

func NewManager(store *Store, resolver *Resolver, imports ImportScheduler, bus *events.Bus, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:    store,
		resolver: resolver,
		imports:  imports,
		bus:      bus,
		log:      log.With("component", "download"),
	}
}

// Initiate records a pending download and hands it to the client
// resolved from the request's tag. The pending row is written first so
// a crash between record and client add leaves a visible stuck download
// rather than an untracked client task.
func (m *Manager) Initiate(ctx context.Context, req Request) (*Download, error) {
	client, err := m.resolver.Resolve(req.ClientTag)
	if err != nil {
		return nil, err
	}

	d := &Download{
		MediaItemID:      req.MediaItemID,
		EpisodeID:        req.EpisodeID,
		LibraryPathID:    req.LibraryPathID,
		Title:            req.Title,
		SourceURL:        req.SourceURL,
		Indexer:          req.Indexer,
		ClientName:       client.Name(),
		Status:           StatusPending,
		IsSeasonPack:     req.SeasonPack,
		PackSeason:       req.PackSeason,
		PackEpisodeCount: req.PackEpisodeCount,
		PackEpisodeIDs:   req.PackEpisodeIDs,
	}
	if err := m.store.Add(d); err != nil {
		return nil, fmt.Errorf("save download: %w", err)
	}
	if d.ClientTaskID != "" {
		// Add was idempotent and returned an already-initiated record.
		return d, nil
	}

	taskID, err := client.Add(ctx, req.SourceURL)
	if err != nil {
		m.log.Error("client add failed", "title", req.Title, "client", client.Name(), "error", err)
		if terr := m.store.Transition(d, StatusFailed); terr != nil {
			m.log.Error("mark failed", "download_id", d.ID, "error", terr)
		}
		m.bus.Publish(ctx, events.NewDownloadFailed(d.ID, d.Title, err.Error()))
		return nil, fmt.Errorf("add to client: %w", err)
	}
	if err := m.store.SetTask(d, client.Name(), taskID); err != nil {
		return nil, err
	}
	if err := m.store.Transition(d, StatusDownloading); err != nil {
		return nil, err
	}

	m.log.Info("download initiated", "download_id", d.ID, "title", d.Title,
		"client", client.Name(), "task_id", taskID)
	m.bus.Publish(ctx, events.NewDownloadInitiated(d.ID, d.Title, client.Name()))
	return d, nil
}

// Refresh polls the client for every active download and applies status
// changes. Completed downloads get an import job scheduled.
func (m *Manager) Refresh(ctx context.Context) error {
	active, err := m.store.List(Filter{Active: true})
	if err != nil {
		return fmt.Errorf("list active: %w", err)
	}
	m.log.Debug("refresh started", "active", len(active))

	var lastErr error
	for _, d := range active {
		if err := m.refreshOne(ctx, d); err != nil {
			m.log.Error("refresh download", "download_id", d.ID, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

func (m *Manager) refreshOne(ctx context.Context, d *Download) error {
	if d.ClientTaskID == "" {
		// Stuck before the client add. Leave it for operator attention.
		return nil
	}
	client, err := m.resolver.ByName(d.ClientName)
	if err != nil {
		return err
	}

	status, err := client.Status(ctx, d.ClientTaskID)
	if err != nil {
		return err
	}

	switch {
	case status.Failed:
		if err := m.store.Transition(d, StatusFailed); err != nil {
			return err
		}
		m.log.Warn("download failed in client", "download_id", d.ID, "reason", status.Message)
		m.bus.Publish(ctx, events.NewDownloadFailed(d.ID, d.Title, status.Message))

	case status.Completed:
		if err := m.store.Transition(d, StatusCompleted); err != nil {
			return err
		}
		m.log.Info("download completed", "download_id", d.ID, "save_path", status.SavePath)
		if m.imports != nil {
			if err := m.imports.ScheduleImport(ctx, d.ID); err != nil {
				return fmt.Errorf("schedule import: %w", err)
			}
		}

	case d.Status == StatusPending:
		if err := m.store.Transition(d, StatusDownloading); err != nil {
			return err
		}
	}
	return nil
}

// ClientStatus fetches the live client state for a download.
func (m *Manager) ClientStatus(ctx context.Context, d *Download) (*ClientStatus, error) {
	client, err := m.resolver.ByName(d.ClientName)
	if err != nil {
		return nil, err
	}
	return client.Status(ctx, d.ClientTaskID)
}

// RemoveFromClient deletes the task and its data from the client.
// Best effort: a task already gone is not an error.
func (m *Manager) RemoveFromClient(ctx context.Context, d *Download) error {
	client, err := m.resolver.ByName(d.ClientName)
	if err != nil {
		return err
	}
	if err := client.Remove(ctx, d.ClientTaskID); err != nil {
		m.log.Warn("remove from client", "download_id", d.ID, "error", err)
	}
	return nil
}

// Cancel removes a download from its client and deletes the record.
func (m *Manager) Cancel(ctx context.Context, downloadID int64) error {
	d, err := m.store.Get(downloadID)
	if err != nil {
		return err
	}
	if d.ClientTaskID != "" {
		_ = m.RemoveFromClient(ctx, d)
	}
	return m.store.Delete(downloadID)
}
