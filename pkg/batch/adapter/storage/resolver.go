package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	storageConfig "github.com/Dryik/migration-tool/pkg/batch/adapter/storage/config"
	coreConfig "github.com/Dryik/migration-tool/pkg/batch/core/config"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// ConnectionResolver picks the provider matching a connection's configured
// type and delegates to it.
type ConnectionResolver struct {
	providers map[string]StorageProvider
	cfg       *coreConfig.Config
}

// ResolverParams collects every StorageProvider registered in the Fx graph.
type ResolverParams struct {
	fx.In
	Providers []StorageProvider `group:"storage_providers"`
	Cfg       *coreConfig.Config
}

// NewConnectionResolver creates a resolver over the given providers.
func NewConnectionResolver(cfg *coreConfig.Config, providers ...StorageProvider) *ConnectionResolver {
	byType := make(map[string]StorageProvider, len(providers))
	for _, p := range providers {
		byType[p.Type()] = p
	}
	return &ConnectionResolver{providers: byType, cfg: cfg}
}

// NewConnectionResolverFromParams is the Fx constructor of ConnectionResolver.
func NewConnectionResolverFromParams(p ResolverParams) *ConnectionResolver {
	return NewConnectionResolver(p.Cfg, p.Providers...)
}

// ResolveStorageConnection implements StorageConnectionResolver.
func (r *ConnectionResolver) ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error) {
	sc, err := storageConfig.Lookup(r.cfg, name)
	if err != nil {
		return nil, err
	}
	provider, ok := r.providers[sc.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider found for type '%s' (connection '%s')", sc.Type, name)
	}
	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage connection '%s' from provider '%s': %w", name, sc.Type, err)
	}
	return conn, nil
}

// CloseAll closes every provider's connections.
func (r *ConnectionResolver) CloseAll() error {
	var result *multierror.Error
	for typ, p := range r.providers {
		if err := p.CloseAll(); err != nil {
			result = multierror.Append(result, fmt.Errorf("storage provider '%s': %w", typ, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	logger.Debugf("All storage providers closed.")
	return nil
}

var _ StorageConnectionResolver = (*ConnectionResolver)(nil)

// WriteObject uploads data as a single object.
func WriteObject(ctx context.Context, conn StorageConnection, bucket, objectName string, data []byte, contentType string) error {
	return conn.Upload(ctx, bucket, objectName, bytes.NewReader(data), contentType)
}

// ReadObject downloads a whole object. found is false when the object does
// not exist.
func ReadObject(ctx context.Context, conn StorageConnection, bucket, objectName string) (data []byte, found bool, err error) {
	rc, err := conn.Download(ctx, bucket, objectName)
	if err != nil {
		if errors.Is(err, ErrObjectNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer rc.Close()

	data, err = io.ReadAll(rc)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read object '%s': %w", objectName, err)
	}
	return data, true, nil
}
