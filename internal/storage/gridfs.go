// Package storage keeps uploaded payment proofs in MongoDB GridFS.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned by Open for an unknown path.
var ErrNotFound = errors.New("object not found")

// Connect opens a client for uri and pings it.  The database name is
// the path component of the URI, e.g. mongodb://host:27017/fuchiball.
func Connect(ctx context.Context, uri string) (*mongo.Client, *mongo.Database, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, nil, fmt.Errorf("parse mongodb uri: %w", err)
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		dbName = "fuchiball"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client, client.Database(dbName), nil
}

// GridFS stores objects under their path as the GridFS filename.
// Deadlines live on *gridfs.Bucket, so every call opens its own bucket
// handle and concurrent requests never share one.
type GridFS struct {
	db        *mongo.Database
	name      string
	urlPrefix string
}

// UploadTimeout bounds an upload whose context carries no deadline.
const UploadTimeout = time.Minute

// NewGridFS checks that the named bucket can be opened.  urlPrefix is
// prepended to stored paths by PublicURL, e.g. "/v1/".
func NewGridFS(db *mongo.Database, bucket, urlPrefix string) (*GridFS, error) {
	g := &GridFS{db: db, name: bucket, urlPrefix: urlPrefix}
	if _, err := g.open(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *GridFS) open() (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(g.db, options.GridFSBucket().SetName(g.name))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket %s: %w", g.name, err)
	}
	return b, nil
}

// uploadDeadline is ctx's deadline, or now+UploadTimeout without one.
func uploadDeadline(ctx context.Context, now time.Time) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		return dl
	}
	return now.Add(UploadTimeout)
}

// Upload streams r into GridFS and returns the stored path.
func (g *GridFS) Upload(ctx context.Context, path, contentType string, r io.Reader) (string, error) {
	b, err := g.open()
	if err != nil {
		return "", err
	}
	if err := b.SetWriteDeadline(uploadDeadline(ctx, time.Now())); err != nil {
		return "", err
	}
	opts := options.GridFSUpload().SetMetadata(bson.D{
		{Key: "content_type", Value: contentType},
		{Key: "uploaded_at", Value: time.Now().UTC()},
	})
	if _, err := b.UploadFromStream(path, r, opts); err != nil {
		return "", fmt.Errorf("gridfs upload %s: %w", path, err)
	}
	return path, nil
}

// PublicURL is the address the proof is served from.
func (g *GridFS) PublicURL(path string) string { return g.urlPrefix + path }

// Open returns the newest revision of path and its content type.  The
// caller closes the reader.  Without a context deadline the read is
// unbounded.
func (g *GridFS) Open(ctx context.Context, path string) (io.ReadCloser, string, error) {
	b, err := g.open()
	if err != nil {
		return nil, "", err
	}
	if dl, ok := ctx.Deadline(); ok {
		if err := b.SetReadDeadline(dl); err != nil {
			return nil, "", err
		}
	}
	ds, err := b.OpenDownloadStreamByName(path)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("gridfs open %s: %w", path, err)
	}
	ct := "application/octet-stream"
	if f := ds.GetFile(); f != nil && f.Metadata != nil {
		if v, ok := f.Metadata.Lookup("content_type").StringValueOK(); ok && v != "" {
			ct = v
		}
	}
	return ds, ct, nil
}
