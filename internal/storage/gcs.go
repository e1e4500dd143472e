package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

type GCSPublisher struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCSPublisher(ctx context.Context, bucket, prefix string) (*GCSPublisher, error) {
	if bucket == "" {
		return nil, fmt.Errorf("GCS bucket not configured")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSPublisher{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (s *GCSPublisher) Close() error {
	return s.client.Close()
}

// Publish uploads every file under root. Objects that already exist with
// the same size are left alone, so an interrupted publish can be resumed.
func (s *GCSPublisher) Publish(ctx context.Context, root string) (PublishResult, error) {
	var res PublishResult

	existing, err := s.listObjects(ctx)
	if err != nil {
		return res, err
	}

	uploads, skipped, err := collectUploads(root, s.prefix, existing)
	if err != nil {
		return res, err
	}
	res.Skipped = skipped

	for _, u := range uploads {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.uploadFile(ctx, u.local, u.object); err != nil {
			return res, fmt.Errorf("failed to upload %s: %w", u.object, err)
		}
		res.Uploaded++
		slog.Debug("Uploaded", "object", u.object)
	}

	slog.Info("Published project", "bucket", s.bucket, "prefix", s.prefix, "uploaded", res.Uploaded, "skipped", res.Skipped)
	return res, nil
}

func (s *GCSPublisher) listObjects(ctx context.Context) (map[string]int64, error) {
	bkt := s.client.Bucket(s.bucket)
	query := &storage.Query{Prefix: s.prefix}

	objects := make(map[string]int64)
	it := bkt.Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		objects[attrs.Name] = attrs.Size
	}

	return objects, nil
}

func (s *GCSPublisher) uploadFile(ctx context.Context, localPath, object string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object: %w", err)
	}
	return nil
}

type upload struct {
	local  string
	object string
}

func collectUploads(root, prefix string, existing map[string]int64) ([]upload, int, error) {
	var uploads []upload
	skipped := 0

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() == LockFile {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		object := path.Join(prefix, filepath.ToSlash(rel))

		info, err := d.Info()
		if err != nil {
			return err
		}
		if size, ok := existing[object]; ok && size == info.Size() {
			skipped++
			return nil
		}
		uploads = append(uploads, upload{local: p, object: object})
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to walk project: %w", err)
	}
	return uploads, skipped, nil
}
