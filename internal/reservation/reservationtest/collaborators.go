package reservationtest

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/iliyamo/fuchiball-booking/internal/storage"
)

// Event is one recorded publication.
type Event struct {
	Key   string
	Event any
}

// Events records published events.
type Events struct {
	mu  sync.Mutex
	Got []Event
}

func (e *Events) Publish(_ context.Context, key string, ev any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Got = append(e.Got, Event{Key: key, Event: ev})
	return nil
}

// Keys lists the routing keys published so far.
func (e *Events) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.Got))
	for _, g := range e.Got {
		out = append(out, g.Key)
	}
	return out
}

// Objects is an in-memory object store.  Set Err to make uploads fail.
type Objects struct {
	mu    sync.Mutex
	Files map[string][]byte
	Types map[string]string
	Err   error
}

func NewObjects() *Objects {
	return &Objects{Files: map[string][]byte{}, Types: map[string]string{}}
}

func (o *Objects) Upload(_ context.Context, path, contentType string, r io.Reader) (string, error) {
	if o.Err != nil {
		return "", o.Err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Files[path] = buf.Bytes()
	o.Types[path] = contentType
	return path, nil
}

func (o *Objects) PublicURL(p string) string { return "/v1/" + p }

// Open returns a stored object, mirroring storage.GridFS.Open.
func (o *Objects) Open(_ context.Context, path string) (io.ReadCloser, string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.Files[path]
	if !ok {
		return nil, "", storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), o.Types[path], nil
}

// Cache counts invalidations.
type Cache struct {
	mu sync.Mutex
	N  int
}

func (c *Cache) Invalidate(context.Context) error {
	c.mu.Lock()
	c.N++
	c.mu.Unlock()
	return nil
}

// Count is the number of invalidations so far.
func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.N
}
