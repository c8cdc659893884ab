package app

import (
	"context"
	"fmt"

	"deckshot/internal/gateway/config"
	artifactrepo "deckshot/internal/gateway/repository/artifact"
	"deckshot/internal/gateway/repository/record"

	"go.uber.org/zap"
)

const localArtifactBaseURL = "http://localhost/artifacts"

type gatewayStores struct {
	artifacts artifactrepo.Store
	records   record.Store
	close     []func() error
}

func initStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gatewayStores, error) {
	artifacts, err := initArtifactStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	s := &gatewayStores{artifacts: artifacts}
	if err := s.initRecordStore(ctx, cfg, logger); err != nil {
		return nil, err
	}
	return s, nil
}

func initArtifactStore(cfg *config.Config, logger *zap.Logger) (artifactrepo.Store, error) {
	if !cfg.Artifact.CanUseS3() && cfg.Artifact.LocalDir != "" {
		store, err := artifactrepo.NewDiskStore(cfg.Artifact.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize artifact disk store: %w", err)
		}
		logger.Info("artifact store: disk", zap.String("dir", cfg.Artifact.LocalDir))
		return store, nil
	}
	if !cfg.Artifact.CanUseS3() {
		logger.Warn("artifact store: in-memory; uploads are lost on exit")
		return artifactrepo.NewMemoryStore(localArtifactBaseURL), nil
	}
	s3Cfg := artifactrepo.S3Config{
		Endpoint:      cfg.Artifact.Endpoint,
		Region:        cfg.Artifact.Region,
		AccessKey:     cfg.Artifact.AccessKey,
		SecretKey:     cfg.Artifact.SecretKey,
		Bucket:        cfg.Artifact.Bucket,
		UseSSL:        cfg.Artifact.UseSSL,
		PublicBaseURL: cfg.Artifact.PublicBaseURL,
		CreateBucket:  config.IsLocal(cfg.Env),
	}
	store, err := artifactrepo.NewS3Store(s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact s3 store: %w", err)
	}
	logger.Info("artifact store: s3", zap.String("bucket", s3Cfg.Bucket), zap.String("endpoint", s3Cfg.Endpoint))
	return store, nil
}

func (s *gatewayStores) initRecordStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	switch {
	case cfg.Record.DSN != "":
		pg, err := record.OpenPostgres(ctx, cfg.Record.DSN)
		if err != nil {
			return fmt.Errorf("failed to initialize record store: %w", err)
		}
		s.records = pg
		s.close = append(s.close, pg.Close)
		logger.Info("record store: postgres")
	case cfg.Record.CanUseD1():
		d1, err := record.NewD1Store(cfg.Record.D1Endpoint(), cfg.Record.APIToken, newHTTPClient())
		if err != nil {
			return fmt.Errorf("failed to initialize record store: %w", err)
		}
		s.records = d1
		logger.Info("record store: d1", zap.String("database_id", cfg.Record.DatabaseID))
	default:
		logger.Warn("record store: in-memory; updates are lost on exit")
		s.records = record.NewMemoryStore()
	}
	return nil
}
