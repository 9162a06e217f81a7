package delivery

import (
	"context"
	"fmt"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/pep299/econ-news-digest/internal/model"
)

// ObjectStore is the part of Cloud Storage the upload transport needs
type ObjectStore interface {
	Put(ctx context.Context, bucket, object, contentType string, data []byte) error
	MakePublic(ctx context.Context, bucket, object string) error
}

// StorageStore implements ObjectStore with the Cloud Storage client
type StorageStore struct {
	client *storage.Client
}

// NewStorageStore connects to Cloud Storage. An empty credentialsFile uses
// application default credentials.
func NewStorageStore(ctx context.Context, credentialsFile string) (*StorageStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &StorageStore{client: client}, nil
}

func (s *StorageStore) Put(ctx context.Context, bucket, object, contentType string, data []byte) error {
	writer := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return fmt.Errorf("writing object data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing object writer: %w", err)
	}
	return nil
}

func (s *StorageStore) MakePublic(ctx context.Context, bucket, object string) error {
	if err := s.client.Bucket(bucket).Object(object).ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return fmt.Errorf("granting public read: %w", err)
	}
	return nil
}

// Close releases the client
func (s *StorageStore) Close() error {
	return s.client.Close()
}

// GCSOptions configures the upload transport
type GCSOptions struct {
	Bucket     string
	Folder     string
	PublicRead bool
	Retry      RetryPolicy
}

// GCS uploads the report into a bucket folder
type GCS struct {
	store  ObjectStore
	opts   GCSOptions
	logger *zap.Logger
}

// NewGCS creates the upload transport
func NewGCS(store ObjectStore, opts GCSOptions, logger *zap.Logger) *GCS {
	return &GCS{store: store, opts: opts, logger: logger}
}

func (g *GCS) Name() string { return "gcs" }

// Deliver uploads the report and returns its public URL when public read is
// enabled, otherwise its gs:// URI.
func (g *GCS) Deliver(ctx context.Context, report model.Report) (model.Receipt, error) {
	data, err := os.ReadFile(report.Path)
	if err != nil {
		return model.Receipt{}, fmt.Errorf("reading report: %w", err)
	}

	object := path.Join(g.opts.Folder, report.Filename)
	g.logger.Info("Uploading report", zap.String("bucket", g.opts.Bucket), zap.String("object", object))

	reference, err := retry(ctx, g.opts.Retry, g.logger, g.Name(), func() (string, error) {
		if err := g.store.Put(ctx, g.opts.Bucket, object, "application/pdf", data); err != nil {
			return "", err
		}
		if !g.opts.PublicRead {
			return fmt.Sprintf("gs://%s/%s", g.opts.Bucket, object), nil
		}
		if err := g.store.MakePublic(ctx, g.opts.Bucket, object); err != nil {
			return "", err
		}
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.opts.Bucket, object), nil
	})
	if err != nil {
		return model.Receipt{}, err
	}
	return model.Receipt{Target: g.Name(), Reference: reference}, nil
}
