// Package objstore stores binary artifacts under opaque names in a GCS
// bucket.
package objstore

import (
	"bytes"
	"context"
	"errors"
	"io"

	"relay-api/internal/shared"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

type Store struct {
	svc    *storage.Service
	bucket string
	log    *zap.SugaredLogger
}

func NewStore(ctx context.Context, bucket string, log *zap.SugaredLogger, opts ...option.ClientOption) (*Store, error) {
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Store{svc: svc, bucket: bucket, log: log}, nil
}

// Fetch returns the artifact bytes and content type for an opaque name.
func (s *Store) Fetch(ctx context.Context, name string) ([]byte, string, error) {
	res, err := s.svc.Objects.Get(s.bucket, name).Context(ctx).Download()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 404 {
			return nil, "", shared.ErrNotFound
		}
		s.log.Errorw("Failed to download artifact", "name", name, "error", err)
		return nil, "", errors.Join(shared.ErrInternalServerError, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", errors.Join(shared.ErrInternalServerError, err)
	}
	return data, res.Header.Get("Content-Type"), nil
}

// Store uploads an artifact under an opaque name, overwriting any previous
// object with that name.
func (s *Store) Store(ctx context.Context, name, contentType string, data []byte) error {
	obj := &storage.Object{Name: name, ContentType: contentType}
	_, err := s.svc.Objects.Insert(s.bucket, obj).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		s.log.Errorw("Failed to upload artifact", "name", name, "error", err)
		return errors.Join(shared.ErrInternalServerError, err)
	}
	return nil
}
