// Package publish writes the dashboard snapshot to its sink.
package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Object is one snapshot write.
type Object struct {
	Key          string
	Body         []byte
	ContentType  string
	CacheControl string
}

// Sink stores a snapshot object in a single terminal write. A failed Put
// leaves any previous snapshot untouched.
type Sink interface {
	Put(ctx context.Context, obj Object) (location string, err error)
	Close() error
}

// Receipt describes a completed publish.
type Receipt struct {
	Location    string
	Bytes       int
	PublishedAt time.Time
}

// Publisher serializes documents and hands them to a sink.
type Publisher struct {
	sink         Sink
	key          string
	cacheControl string
	now          func() time.Time
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithCacheControl sets the Cache-Control metadata for published objects.
func WithCacheControl(v string) PublisherOption {
	return func(p *Publisher) { p.cacheControl = v }
}

// WithKey sets the object key.
func WithKey(key string) PublisherOption {
	return func(p *Publisher) { p.key = key }
}

// NewPublisher creates a Publisher writing dashboard_data.json to sink.
func NewPublisher(sink Sink, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		sink:         sink,
		key:          "dashboard_data.json",
		cacheControl: "no-cache, max-age=300",
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish encodes doc as indented JSON and writes it. Nothing is written if
// encoding fails.
func (p *Publisher) Publish(ctx context.Context, doc any) (*Receipt, error) {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "publish: marshal document")
	}

	loc, err := p.sink.Put(ctx, Object{
		Key:          p.key,
		Body:         body,
		ContentType:  "application/json",
		CacheControl: p.cacheControl,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "publish: write %s", p.key)
	}

	zap.L().Info("snapshot published",
		zap.String("component", "publish"),
		zap.String("location", loc),
		zap.Int("bytes", len(body)),
	)
	return &Receipt{Location: loc, Bytes: len(body), PublishedAt: p.now().UTC()}, nil
}

// Close releases the sink.
func (p *Publisher) Close() error {
	return p.sink.Close()
}
