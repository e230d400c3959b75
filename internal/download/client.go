package download

import (
	"context"
	"fmt"
)

// Client tag constants. Quality profiles and indexer results select a
// client through these tags.
const (
	TagTorrent   = "torrent"
	TagUsenet    = "usenet"
	TagBlackhole = "blackhole"
	TagHTTP      = "http"
)

// ClientStatus is a snapshot of one task inside a download client.
type ClientStatus struct {
	TaskID    string
	Name      string
	Progress  float64 // 0-100
	Size      int64
	SavePath  string // populated once the client knows it
	Completed bool
	Failed    bool
	Message   string // failure detail when Failed
}

// Client is the uniform interface over download back ends.
type Client interface {
	// Name identifies the client in logs and download records.
	Name() string
	// Add hands a release URL to the client and returns a task ID.
	Add(ctx context.Context, url string) (string, error)
	// Status reports the state of a previously added task.
	// Returns ErrTaskNotFound when the client no longer knows it.
	Status(ctx context.Context, taskID string) (*ClientStatus, error)
	// Remove deletes the task and its data from the client.
	Remove(ctx context.Context, taskID string) error
}

// Resolver maps client type tags to configured clients.
type Resolver struct {
	clients map[string]Client
	def     string
}

func NewResolver() *Resolver {
	return &Resolver{clients: make(map[string]Client)}
}

// Register adds a client under a tag. The first registered client
// becomes the default.
func (r *Resolver) Register(tag string, c Client) {
	if len(r.clients) == 0 {
		r.def = tag
	}
	r.clients[tag] = c
}

// Resolve returns the client for a tag. An empty tag resolves to the
// default client. Returns ErrUnknownClient when nothing matches.
func (r *Resolver) Resolve(tag string) (Client, error) {
	if tag == "" {
		tag = r.def
	}
	c, ok := r.clients[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClient, tag)
	}
	return c, nil
}

// ByName returns the registered client whose Name matches, used when
// refreshing downloads recorded under a client name.
func (r *Resolver) ByName(name string) (Client, error) {
	for _, c := range r.clients {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownClient, name)
}
