// Package objectstore publishes job artifacts to S3, NATS object stores or
// the local filesystem, selected by the scheme of the destination URI.
package objectstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoBackend indicates that no backend is registered for a scheme.
var ErrNoBackend = errors.New("no storage backend registered for scheme")

// Backend stores objects addressed by bucket and key.
type Backend interface {
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// Router implements core.ObjectStore by dispatching on location scheme.
type Router struct {
	backends map[Scheme]Backend
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{backends: make(map[Scheme]Backend)}
}

// Register installs the backend used for scheme, replacing any previous one.
func (r *Router) Register(scheme Scheme, backend Backend) {
	r.backends[scheme] = backend
}

// Put uploads data to location.
func (r *Router) Put(ctx context.Context, location string, data []byte, contentType string) error {
	loc, backend, err := r.resolve(location)
	if err != nil {
		return err
	}

	err = backend.PutObject(ctx, loc.Bucket, loc.Key, data, contentType)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", location, err)
	}

	return nil
}

// Get downloads the object at location.
func (r *Router) Get(ctx context.Context, location string) ([]byte, error) {
	loc, backend, err := r.resolve(location)
	if err != nil {
		return nil, err
	}

	data, err := backend.GetObject(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", location, err)
	}

	return data, nil
}

func (r *Router) resolve(location string) (Location, Backend, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return Location{}, nil, err
	}

	backend, ok := r.backends[loc.Scheme]
	if !ok {
		return Location{}, nil, fmt.Errorf("%w: %s", ErrNoBackend, loc.Scheme)
	}

	return loc, backend, nil
}
