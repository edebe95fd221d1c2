package adapter

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

// Storage keeps history backups as objects addressed by key
type Storage interface {
	// Put replaces the object with the content of r. The previous object is
	// kept when r cannot be read to the end.
	Put(ctx context.Context, key string, r io.Reader) error
	// Get opens the object for reading
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Close() error
}

// storageClient implements Storage interface using Cloud Storage
type storageClient struct {
	bucketName string
	prefix     string
	client     *storage.Client
}

// NewCloudStorage creates a Storage backed by a Cloud Storage bucket.
// Keys are placed under prefix.
func NewCloudStorage(ctx context.Context, bucketName, prefix string) (Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		prefix:     prefix,
		client:     client,
	}, nil
}

func (s *storageClient) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucketName).Object(s.prefix + key)
}

func (s *storageClient) Put(ctx context.Context, key string, r io.Reader) error {
	// canceling the writer's context abandons the upload without committing it
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := s.object(key).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := io.Copy(writer, r); err != nil {
		cancel()
		return goerr.Wrap(err, "failed to write to storage",
			goerr.V("bucket", s.bucketName),
			goerr.V("key", s.prefix+key))
	}
	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to commit object",
			goerr.V("bucket", s.bucketName),
			goerr.V("key", s.prefix+key))
	}
	return nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := s.object(key).NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage",
			goerr.V("bucket", s.bucketName),
			goerr.V("key", s.prefix+key))
	}

	return reader, nil
}

func (s *storageClient) Close() error {
	return s.client.Close()
}

// fileStorage implements Storage on the local file system
type fileStorage struct {
	dir string
}

// NewFileStorage creates a Storage that keeps objects as files under dir
func NewFileStorage(dir string) Storage {
	return &fileStorage{dir: dir}
}

func (s *fileStorage) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key))
}

// Put writes a temporary file next to the target and renames it over the target
func (s *fileStorage) Put(ctx context.Context, key string, r io.Reader) error {
	path := s.path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return goerr.Wrap(err, "failed to create directory", goerr.V("path", path))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return goerr.Wrap(err, "failed to create temporary file", goerr.V("path", path))
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return goerr.Wrap(err, "failed to write file", goerr.V("path", path))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(err, "failed to write file", goerr.V("path", path))
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return goerr.Wrap(err, "failed to set file mode", goerr.V("path", path))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return goerr.Wrap(err, "failed to replace file", goerr.V("path", path))
	}
	return nil
}

func (s *fileStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path := s.path(key)
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open file", goerr.V("path", path))
	}
	return f, nil
}

func (s *fileStorage) Close() error {
	return nil
}
