package domain

import "context"

const BlobScheme = "blob"

// BlobStore stages run artifacts and hands back an opaque URI.
type BlobStore interface {
	Put(ctx context.Context, namespace, name string, data []byte) (uri string, err error)
	Get(ctx context.Context, uri string) ([]byte, error)
}
