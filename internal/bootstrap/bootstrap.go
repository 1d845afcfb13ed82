// Package bootstrap wires the catalog, data engine, compactor, object
// storage, and lakehouse Engine from a loaded Config — the construction
// sequence cmd/ironlaked and cmd/ironlake-lambda both need, factored out
// so the two entrypoints can't drift on how a component gets built.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/rivermark/ironlake/internal/catalog"
	_ "github.com/rivermark/ironlake/internal/catalog/dynamo"
	_ "github.com/rivermark/ironlake/internal/catalog/rest"
	"github.com/rivermark/ironlake/internal/compact"
	"github.com/rivermark/ironlake/internal/config"
	"github.com/rivermark/ironlake/internal/engine/dolt"
	"github.com/rivermark/ironlake/internal/lakehouse"
	"github.com/rivermark/ironlake/internal/storageio"
	"github.com/rivermark/ironlake/internal/telemetry"
)

// Stack bundles the wired lakehouse Engine with the telemetry Providers and
// underlying data store, so callers can defer their shutdown in one place.
type Stack struct {
	Engine    *lakehouse.Engine
	Providers *telemetry.Providers
	dataStore *dolt.Store
}

// Close releases the data store connection. Telemetry shutdown is the
// caller's responsibility (it wants a fresh, un-canceled context).
func (s *Stack) Close() error {
	return s.dataStore.Close()
}

// New loads cfg's catalog/engine/storage/compaction sections and wires a
// ready-to-dispatch lakehouse Engine plus its telemetry Providers.
func New(ctx context.Context, cfg *config.Config, serviceName string) (*Stack, error) {
	providers, err := telemetry.New(ctx, telemetry.Config{
		ServiceName:  serviceName,
		OTLPEndpoint: cfg.OTLPEndpoint(),
		JSONLogs:     cfg.Environment != config.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: telemetry: %w", err)
	}

	catCfg := cfg.Catalog()
	catClient, err := catalog.New(ctx, catCfg.Type, catCfg.URI)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: catalog: %w", err)
	}

	dataStore, err := dolt.Open(ctx, dolt.Config{
		Server:         true,
		ServerHost:     cfg.GetString("dolt", "host"),
		ServerPort:     cfg.GetInt("dolt", "port"),
		ServerUser:     cfg.GetString("dolt", "user"),
		ServerPassword: cfg.GetString("dolt", "password"),
		Database:       cfg.GetString("dolt", "database"),
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: engine: %w", err)
	}

	s3Cfg := cfg.S3()
	storageClient, err := storageio.New(ctx, storageio.Config{
		Provider:        s3Cfg.Provider,
		Bucket:          s3Cfg.BucketName,
		Region:          s3Cfg.Region,
		Endpoint:        s3Cfg.Endpoint,
		AccessKeyID:     s3Cfg.AccessKeyID,
		SecretAccessKey: s3Cfg.SecretAccessKey,
	})
	if err != nil {
		dataStore.Close()
		return nil, fmt.Errorf("bootstrap: storage: %w", err)
	}

	compCfg := cfg.Compaction()
	compactor := compact.New(dataStore, compact.Config{
		Concurrency:           5,
		MaxFilesPerCompaction: compCfg.MaxFilesPerCompaction,
		SmallFileThresholdMB:  compCfg.SmallFileThresholdMB,
	})

	presignTTL := time.Duration(cfg.PresignTTLSeconds()) * time.Second
	eng := lakehouse.New(catClient, dataStore, compactor, storageClient, presignTTL, providers.Logger)

	return &Stack{Engine: eng, Providers: providers, dataStore: dataStore}, nil
}
