// Package storage holds uploaded exam assets (audio clips).
package storage

import (
	"errors"
	"io"
)

var ErrInvalidKey = errors.New("invalid blob key")

type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
}
