package importer

import "context"

// Notifier tells external media servers to rescan their libraries after
// a successful import. Calls are best effort: a notify failure never
// fails the import.
type Notifier interface {
	NotifyAll(ctx context.Context) error
}

// NoopNotifier is the default when no media server is configured.
type NoopNotifier struct{}

func (NoopNotifier) NotifyAll(context.Context) error { return nil }

var _ Notifier = NoopNotifier{}
var _ Notifier = (*PlexNotifier)(nil)
