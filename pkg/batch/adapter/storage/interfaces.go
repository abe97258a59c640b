// Package storage defines the object storage abstraction behind the
// persisted schema cache tier, the file state store and record sources.
// Backends (local file system, Google Cloud Storage) live in sub-packages and
// register themselves as StorageProviders.
package storage

import (
	"context"
	"errors"
	"io"
)

// ProviderGroup is the Fx value group collecting StorageProviders.
const ProviderGroup = "storage_providers"

// ErrObjectNotExist is returned (wrapped) by Download when the object is missing.
var ErrObjectNotExist = errors.New("storage: object does not exist")

// StorageExecutor defines generic storage operations.
type StorageExecutor interface {
	// Upload writes data to bucket/objectName, replacing any existing object.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens bucket/objectName. The caller closes the reader.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object under prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes bucket/objectName. Deleting a missing object is not an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// StorageConnection is a named, open storage backend.
type StorageConnection interface {
	StorageExecutor

	// Close releases the connection.
	Close() error
	// Type returns the backend type ("local", "gcs").
	Type() string
	// Name returns the configured connection name.
	Name() string
}

// StorageProvider opens and caches connections of one backend type.
type StorageProvider interface {
	// GetConnection returns the named connection, opening it on first use.
	GetConnection(name string) (StorageConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the backend type handled by this provider.
	Type() string
	// ForceReconnect closes and reopens the named connection.
	ForceReconnect(name string) (StorageConnection, error)
}

// StorageConnectionResolver resolves a configured connection name to an open
// connection of the right backend.
type StorageConnectionResolver interface {
	ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error)
}
