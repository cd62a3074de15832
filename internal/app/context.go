package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"taskdeck/internal/config"
	"taskdeck/internal/db"
	"taskdeck/internal/engine"
	"taskdeck/internal/engine/auth"
	"taskdeck/internal/migrate"
	"taskdeck/internal/mongostore"
	"taskdeck/internal/repo"
)

// OpenStore opens the storage backend named by cfg.Storage.Driver. The
// returned close func releases the connection.
func OpenStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (engine.Store, func() error, error) {
	switch cfg.Storage.Driver {
	case "", "sqlite":
		conn, err := db.Open(db.Config{Workspace: cfg.Storage.Workspace})
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		version, err := migrate.Migrate(ctx, conn)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		log.WithFields(logrus.Fields{"path": db.Path(cfg.Storage.Workspace), "schema": version}).Info("sqlite store ready")
		return repo.Repo{DB: conn}, conn.Close, nil
	case "mongo":
		store, err := mongostore.Open(ctx, mongostore.Config{URI: cfg.Storage.MongoURI, Database: cfg.Storage.MongoDatabase})
		if err != nil {
			return nil, nil, err
		}
		log.WithField("database", cfg.Storage.MongoDatabase).Info("mongo store ready")
		return store, func() error { return store.Close(context.Background()) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// NewEngine wires an engine over store using the auth and reminder settings.
func NewEngine(cfg *config.Config, store engine.Store, log logrus.FieldLogger) (engine.Engine, error) {
	if cfg.Auth.JWTSecret == "" {
		return engine.Engine{}, errors.New("auth.jwt_secret is not set; run `td config init` or export TASKDECK_AUTH_JWT_SECRET")
	}
	loc, err := cfg.Location()
	if err != nil {
		return engine.Engine{}, err
	}
	eng := engine.New(store, auth.Tokens{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.Issuer, TTL: cfg.Auth.TokenTTL}, log)
	eng.Location = loc
	return eng, nil
}

// ConfigPath resolves the config file for a workspace unless one was given.
func ConfigPath(workspace, override string) string {
	if override != "" {
		return override
	}
	return config.Path(filepath.Clean(workspace))
}
