package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadDeadline(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(UploadTimeout), uploadDeadline(context.Background(), now))

	dl := now.Add(3 * time.Second)
	ctx, cancel := context.WithDeadline(context.Background(), dl)
	defer cancel()
	assert.Equal(t, dl, uploadDeadline(ctx, now))
}

// Runs against a live server when MONGODB_TEST_URI is set, e.g.
// mongodb://localhost:27017/fuchiball_test.
func newTestGridFS(t *testing.T) *GridFS {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, db, err := Connect(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	g, err := NewGridFS(db, "proofs_test_"+uuid.NewString()[:8], "/v1/")
	require.NoError(t, err)
	t.Cleanup(func() {
		b, err := g.open()
		if err == nil {
			_ = b.Drop()
		}
	})
	return g
}

func TestGridFSDeadlinesStayPerCall(t *testing.T) {
	g := newTestGridFS(t)
	ctx := context.Background()

	path := "proofs/m1/" + uuid.NewString() + ".png"
	_, err := g.Upload(ctx, path, "image/png", bytes.NewReader([]byte("png")))
	require.NoError(t, err)

	expired, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
	defer cancel()
	if rc, _, err := g.Open(expired, path); err == nil {
		_, err = io.ReadAll(rc)
		_ = rc.Close()
		assert.Error(t, err)
	}

	rc, ct, err := g.Open(ctx, path)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png", string(body))
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, "/v1/"+path, g.PublicURL(path))

	_, _, err = g.Open(ctx, "proofs/m1/missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGridFSConcurrentUploads(t *testing.T) {
	g := newTestGridFS(t)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(i+1)*5*time.Second)
			defer cancel()
			_, err := g.Upload(ctx, fmt.Sprintf("proofs/m1/%d.png", i), "image/png", bytes.NewReader([]byte{byte(i)}))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
