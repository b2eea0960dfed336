package publish

import (
	"context"
	"errors"

	"cloud.google.com/go/storage"
	"github.com/rotisserie/eris"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/sells-group/vin-dashboard/internal/resilience"
)

// GCSSink uploads the snapshot to a Cloud Storage bucket. The object is only
// replaced when the upload completes; a canceled upload leaves it as it was.
type GCSSink struct {
	client *storage.Client
	bucket string
}

// NewGCSSink creates a storage client using application default credentials
// unless opts say otherwise.
func NewGCSSink(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSSink, error) {
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "gcs sink: create client")
	}
	return &GCSSink{client: client, bucket: bucket}, nil
}

func (s *GCSSink) Put(ctx context.Context, obj Object) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(obj.Key).NewWriter(ctx)
	w.ContentType = obj.ContentType
	w.CacheControl = obj.CacheControl

	if _, err := w.Write(obj.Body); err != nil {
		cancel()
		_ = w.Close()
		return "", eris.Wrapf(classify(err), "gcs sink: write gs://%s/%s", s.bucket, obj.Key)
	}
	if err := w.Close(); err != nil {
		return "", eris.Wrapf(classify(err), "gcs sink: close gs://%s/%s", s.bucket, obj.Key)
	}
	return "gs://" + s.bucket + "/" + obj.Key, nil
}

func (s *GCSSink) Close() error {
	return s.client.Close()
}

// classify marks throttling and gateway failures as transient.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && resilience.IsTransientHTTPStatus(gerr.Code) {
		return resilience.NewTransientError(err, gerr.Code)
	}
	return err
}
