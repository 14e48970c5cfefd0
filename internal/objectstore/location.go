package objectstore

import (
	"errors"
	"fmt"
	"strings"
)

// Scheme identifies a storage backend in a location URI.
type Scheme string

// Supported location schemes.
const (
	SchemeS3   Scheme = "s3"
	SchemeNATS Scheme = "nats"
	SchemeFile Scheme = "file"
)

const schemeSeparator = "://"

var (
	// ErrInvalidLocation indicates a location that is not scheme://bucket/key.
	ErrInvalidLocation = errors.New("invalid object location")
	// ErrUnsupportedScheme indicates a scheme with no known backend.
	ErrUnsupportedScheme = errors.New("unsupported location scheme")
)

// Location is a parsed object destination.
type Location struct {
	Scheme Scheme
	Bucket string
	Key    string
}

// String renders the location back to URI form.
func (l Location) String() string {
	if l.Scheme == SchemeFile {
		return string(l.Scheme) + schemeSeparator + l.Key
	}

	return string(l.Scheme) + schemeSeparator + l.Bucket + "/" + l.Key
}

// ParseLocation splits a location URI. s3 and nats locations need both a
// bucket and a key; file locations need an absolute path.
func ParseLocation(uri string) (Location, error) {
	schemeText, rest, found := strings.Cut(uri, schemeSeparator)
	if !found {
		return Location{}, fmt.Errorf("%w: %q has no scheme", ErrInvalidLocation, uri)
	}

	scheme := Scheme(strings.ToLower(schemeText))

	switch scheme {
	case SchemeFile:
		if !strings.HasPrefix(rest, "/") || len(rest) < 2 {
			return Location{}, fmt.Errorf("%w: %q is not an absolute file path", ErrInvalidLocation, uri)
		}

		return Location{Scheme: scheme, Bucket: "", Key: rest}, nil
	case SchemeS3, SchemeNATS:
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" || key == "" {
			return Location{}, fmt.Errorf("%w: %q needs a bucket and a key", ErrInvalidLocation, uri)
		}

		return Location{Scheme: scheme, Bucket: bucket, Key: key}, nil
	default:
		return Location{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, schemeText)
	}
}
