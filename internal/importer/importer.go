// Package importer reconciles completed downloads into the library.
//
// The reconciler is driven by the job queue with at-least-once delivery,
// so every step is safe to repeat: an already-imported download is a
// no-op, a half-finished attempt converges on retry.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mydia/mydia/internal/config"
	"github.com/mydia/mydia/internal/download"
	"github.com/mydia/mydia/internal/events"
	"github.com/mydia/mydia/internal/library"
	"github.com/mydia/mydia/pkg/release"
)

const (
	// snoozeInterval is how long to wait before checking an unfinished
	// download again.
	snoozeInterval = 5 * time.Minute
	// maxSnoozes caps the waiting loop at roughly one hour.
	maxSnoozes = 12
)

// Result tells the job scheduler what to do after an import attempt.
type Result struct {
	// Done means no further runs are needed: imported, or failed with
	// no retry scheduled.
	Done bool
	// RetryIn asks for another run after the delay.
	RetryIn time.Duration
	// SnoozeCount is carried in job arguments across waiting runs. It is
	// deliberately separate from the job's attempt counter.
	SnoozeCount int
}

// Importer moves the files of completed downloads into library paths
// and records the resulting media files.
type Importer struct {
	downloads *download.Store
	library   *library.Store
	resolver  *download.Resolver
	probe     FileProbe
	refresher EpisodeRefresher
	notifier  Notifier
	bus       *events.Bus
	cfg       config.ImportConfig

	// removeOnComplete maps client name to the per-client opt-in for
	// deleting the client task after import. Off by default so seeding
	// torrents survive.
	removeOnComplete map[string]bool

	log *slog.Logger
}

func New(downloads *download.Store, lib *library.Store, resolver *download.Resolver,
	cfg config.ImportConfig, bus *events.Bus, log *slog.Logger) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{
		downloads:        downloads,
		library:          lib,
		resolver:         resolver,
		notifier:         NoopNotifier{},
		bus:              bus,
		cfg:              cfg,
		removeOnComplete: make(map[string]bool),
		log:              log.With("component", "importer"),
	}
}

// WithProbe sets the technical metadata probe.
func (i *Importer) WithProbe(p FileProbe) *Importer { i.probe = p; return i }

// WithRefresher sets the episode list refresher.
func (i *Importer) WithRefresher(r EpisodeRefresher) *Importer { i.refresher = r; return i }

// WithNotifier sets the media server notifier.
func (i *Importer) WithNotifier(n Notifier) *Importer {
	if n != nil {
		i.notifier = n
	}
	return i
}

// SetRemoveOnComplete opts a client into task removal after import.
func (i *Importer) SetRemoveOnComplete(clientName string, remove bool) {
	i.removeOnComplete[clientName] = remove
}

// Run performs one import attempt for a download. snoozeCount counts
// how many times this download was already found incomplete.
func (i *Importer) Run(ctx context.Context, downloadID int64, snoozeCount int) (Result, error) {
	d, err := i.downloads.Get(downloadID)
	if err != nil {
		return Result{Done: true}, err
	}

	// Idempotence: at-least-once delivery will occasionally re-run an
	// already finished import.
	if d.ImportedAt != nil {
		i.log.Debug("already imported", "download_id", d.ID)
		return Result{Done: true}, nil
	}

	client, err := i.resolver.ByName(d.ClientName)
	if err != nil {
		return i.fail(ctx, d, fmt.Sprintf(
			"download client %q is not configured; re-add the client or cancel the download", d.ClientName))
	}

	st, err := client.Status(ctx, d.ClientTaskID)
	if err != nil {
		return i.fail(ctx, d, fmt.Sprintf("download client %q: %v", d.ClientName, err))
	}
	if st.Failed {
		return i.fail(ctx, d, fmt.Sprintf("download failed in client %q: %s", d.ClientName, st.Message))
	}
	if !st.Completed {
		if snoozeCount >= maxSnoozes {
			return i.terminal(ctx, d, fmt.Sprintf(
				"download not completed after waiting %s; check the download client",
				time.Duration(maxSnoozes)*snoozeInterval))
		}
		i.log.Debug("download not completed, snoozing",
			"download_id", d.ID, "snooze_count", snoozeCount+1)
		return Result{RetryIn: snoozeInterval, SnoozeCount: snoozeCount + 1}, nil
	}

	if d.Status != download.StatusCompleted {
		if err := i.downloads.Transition(d, download.StatusCompleted); err != nil {
			return Result{}, err
		}
	}

	files, err := collectFiles(st.SavePath)
	if err != nil || len(files) == 0 {
		return i.fail(ctx, d, fmt.Sprintf(
			"no files found at %q; the client may still be moving them", st.SavePath))
	}

	libPath, mediaType, err := i.libraryPathFor(d)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			return i.fail(ctx, d, fmt.Sprintf(
				"no monitored library accepts %s content; add one to the libraries config", mediaType))
		}
		return Result{}, err
	}

	importable := filterImportable(files, libPath.Type)
	if len(importable) == 0 {
		return i.fail(ctx, d, fmt.Sprintf(
			"none of the %d files at %q fit a %s library", len(files), st.SavePath, libPath.Type))
	}

	imported := 0
	var firstErr error
	for _, src := range importable {
		err := i.importFile(ctx, d, libPath, mediaType, src)
		if errors.Is(err, ErrLibraryTypeMismatch) {
			return i.terminal(ctx, d, fmt.Sprintf(
				"cannot import %s content into the %s library at %q", mediaType, libPath.Type, libPath.Root))
		}
		if err != nil {
			// One bad file must not abort its siblings.
			i.log.Error("file import failed", "download_id", d.ID, "file", src, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		imported++
	}
	if imported == 0 {
		return i.fail(ctx, d, fmt.Sprintf("importing files from %q failed: %v", st.SavePath, firstErr))
	}

	recovered := d.ImportRetryCount
	if err := i.downloads.MarkImported(d); err != nil {
		return Result{}, err
	}
	if recovered > 0 {
		i.log.Info("import recovered after failures", "download_id", d.ID, "failed_attempts", recovered)
	}

	if i.removeOnComplete[d.ClientName] {
		if err := client.Remove(ctx, d.ClientTaskID); err != nil {
			i.log.Warn("remove completed task", "download_id", d.ID, "error", err)
		}
	}
	if err := i.notifier.NotifyAll(ctx); err != nil {
		// Best effort: a rescan failure never fails the import.
		i.log.Warn("media server notify failed", "error", err)
	}

	i.bus.Publish(ctx, events.NewImportCompleted(d.ID, imported))
	i.log.Info("import completed", "download_id", d.ID, "title", d.Title, "files", imported)
	return Result{Done: true}, nil
}

// libraryPathFor picks the target library: a direct association wins,
// otherwise the first monitored path matching the media kind.
func (i *Importer) libraryPathFor(d *download.Download) (*library.LibraryPath, library.MediaType, error) {
	mt := i.mediaTypeOf(d)
	if d.LibraryPathID != nil {
		p, err := i.library.GetLibraryPath(*d.LibraryPathID)
		return p, mt, err
	}
	p, err := i.library.FindLibraryPathFor(mt)
	return p, mt, err
}

func (i *Importer) mediaTypeOf(d *download.Download) library.MediaType {
	if d.EpisodeID != nil {
		return library.MediaTypeTVShow
	}
	if d.MediaItemID != nil {
		if item, err := i.library.GetMediaItem(*d.MediaItemID); err == nil {
			return item.Type
		}
	}
	return library.MediaTypeMovie
}

// filterImportable keeps files whose extension fits the library type.
// Sample files are skipped.
func filterImportable(files []string, t library.LibraryType) []string {
	var out []string
	for _, f := range files {
		if !t.AcceptsFile(f) {
			continue
		}
		if strings.Contains(strings.ToLower(filepath.Base(f)), "sample") {
			continue
		}
		out = append(out, f)
	}
	return out
}

// importFile places one file into the library and records it.
func (i *Importer) importFile(ctx context.Context, d *download.Download,
	libPath *library.LibraryPath, mediaType library.MediaType, src string) error {

	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	dest := i.resolveDestination(ctx, d, src)
	if (dest.episodeID != nil || dest.mediaItemID != nil) && !libPath.Type.MatchesMediaType(mediaType) {
		return fmt.Errorf("%w: %s into %s", ErrLibraryTypeMismatch, mediaType, libPath.Type)
	}

	relPath := dest.relPath
	dstPath := filepath.Join(libPath.Root, relPath)
	if err := ValidatePath(dstPath, libPath.Root); err != nil {
		return err
	}

	// Conflict at destination: a tracked file of equal size is the same
	// import landing twice, anything else gets a uniquified path.
	if _, err := os.Stat(dstPath); err == nil {
		existing, ferr := i.library.FindMediaFileByPath(libPath.ID, relPath)
		if ferr == nil && existing.Size == srcInfo.Size() {
			i.log.Debug("destination already tracked", "download_id", d.ID, "path", relPath)
			return nil
		}
		relPath = uniquify(relPath)
		dstPath = filepath.Join(libPath.Root, relPath)
	}

	size, err := placeFile(src, dstPath, PlaceOptions{
		Hardlink: i.cfg.UseHardlinks,
		Move:     i.cfg.MoveFiles,
	})
	if err != nil {
		return err
	}

	file := i.buildMediaFile(libPath, relPath, size, dstPath, dest)
	if err := i.library.AddMediaFile(file); err != nil {
		if errors.Is(err, library.ErrDuplicate) {
			// An independent library scan recorded the file first.
			return nil
		}
		return fmt.Errorf("record media file: %w", err)
	}

	i.log.Info("file imported", "download_id", d.ID, "path", relPath, "size", size)
	return nil
}

// buildMediaFile merges probe metadata with filename-derived values.
// The probe wins wherever it produced something.
func (i *Importer) buildMediaFile(libPath *library.LibraryPath, relPath string,
	size int64, dstPath string, dest destination) *library.MediaFile {

	info := release.Parse(filepath.Base(relPath))
	file := &library.MediaFile{
		LibraryPathID: libPath.ID,
		RelativePath:  relPath,
		Size:          size,
		Resolution:    info.Resolution.String(),
		VideoCodec:    info.Codec.String(),
		AudioCodec:    info.Audio.String(),
		HDR:           info.HDR.String(),
		EpisodeID:     dest.episodeID,
		MediaItemID:   dest.mediaItemID,
	}

	if i.probe != nil {
		mi, err := i.probe.Analyze(dstPath)
		if err != nil {
			i.log.Debug("probe failed, using filename metadata", "path", relPath, "error", err)
		} else if mi != nil {
			if mi.Resolution != "" {
				file.Resolution = mi.Resolution
			}
			if mi.VideoCodec != "" {
				file.VideoCodec = mi.VideoCodec
			}
			if mi.AudioCodec != "" {
				file.AudioCodec = mi.AudioCodec
			}
			if mi.HDR != "" {
				file.HDR = mi.HDR
			}
			if mi.Bitrate != nil {
				file.Bitrate = mi.Bitrate
			}
		}
	}
	return file
}

// fail records a retryable import failure and schedules the next attempt
// on the backoff ladder.
func (i *Importer) fail(ctx context.Context, d *download.Download, msg string) (Result, error) {
	delay := backoffDelay(d.ImportRetryCount)
	next := time.Now().Add(delay)
	if err := i.downloads.RecordImportFailure(d, msg, &next); err != nil {
		return Result{}, err
	}
	i.bus.Publish(ctx, events.NewImportFailed(d.ID, msg, d.ImportRetryCount, &next))
	i.log.Warn("import attempt failed", "download_id", d.ID,
		"attempt", d.ImportRetryCount, "retry_in", delay, "error", msg)
	return Result{RetryIn: delay}, nil
}

// terminal records a failure that retrying cannot fix. No retry is
// scheduled; next_retry_at stays nil.
func (i *Importer) terminal(ctx context.Context, d *download.Download, msg string) (Result, error) {
	if err := i.downloads.RecordImportFailure(d, msg, nil); err != nil {
		return Result{}, err
	}
	i.bus.Publish(ctx, events.NewImportFailed(d.ID, msg, d.ImportRetryCount, nil))
	i.log.Error("import failed permanently", "download_id", d.ID, "error", msg)
	return Result{Done: true}, nil
}
