package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillsmith/pkg/db"
	"github.com/jingkaihe/skillsmith/pkg/logger"
	"github.com/jingkaihe/skillsmith/pkg/skills"
	"github.com/jingkaihe/skillsmith/pkg/suggestions"
	"github.com/jingkaihe/skillsmith/pkg/suggestions/sqlite"
	"github.com/jingkaihe/skillsmith/pkg/verify"
)

// Storage backends selectable with --store
const (
	storeJSON   = "json"
	storeSQLite = "sqlite"
	storeMemory = "memory"
)

// dataDirName is created inside the skills directory when no data
// directory is configured.
const dataDirName = ".optimizer"

// dataDir returns the configured data directory, defaulting to
// <skills-dir>/.optimizer.
func dataDir() string {
	if dir := viper.GetString("data_dir"); dir != "" {
		return dir
	}
	return filepath.Join(skills.ConfiguredDir(), dataDirName)
}

// openStore opens the suggestion store on the configured backend. The
// returned close function releases the backend and is always non-nil.
func openStore(ctx context.Context) (*suggestions.Store, func(), error) {
	noop := func() {}
	backend := viper.GetString("store")
	ctx = logger.WithField(ctx, "store", backend)

	switch backend {
	case "", storeJSON:
		b, err := suggestions.NewJSONBackend(dataDir())
		if err != nil {
			return nil, noop, err
		}
		return suggestions.New(ctx, b), noop, nil
	case storeSQLite:
		b, err := sqlite.New(ctx, db.PathIn(dataDir()))
		if err != nil {
			return nil, noop, errors.Wrap(err, "failed to open sqlite store")
		}
		closeFn := func() {
			if err := b.Close(); err != nil {
				logger.G(ctx).WithError(err).Warn("failed to close sqlite store")
			}
		}
		return suggestions.New(ctx, b), closeFn, nil
	case storeMemory:
		return suggestions.New(ctx, suggestions.NewMemoryBackend()), noop, nil
	default:
		return nil, noop, errors.Errorf("unknown store backend: %s (expected %s, %s or %s)", backend, storeJSON, storeSQLite, storeMemory)
	}
}

// openReadOnlyStore opens the store for commands that must not touch
// storage, such as a dry-run apply. A SQLite database that does not exist
// yet is not created; an empty in-memory store stands in for it.
func openReadOnlyStore(ctx context.Context) (*suggestions.Store, func(), error) {
	if viper.GetString("store") == storeSQLite {
		path := db.PathIn(dataDir())
		if _, err := os.Stat(path); os.IsNotExist(err) {
			logger.G(ctx).WithField("path", path).Debug("no suggestion database yet, using an empty store")
			return suggestions.New(ctx, suggestions.NewMemoryBackend()), func() {}, nil
		}
	}
	return openStore(ctx)
}

// newVerifier builds a verifier with thresholds from the verify.* config keys
func newVerifier() (*verify.Verifier, error) {
	cfg := verify.DefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create verify config decoder")
	}
	if err := decoder.Decode(viper.GetStringMap("verify")); err != nil {
		return nil, errors.Wrap(err, "failed to decode verify configuration")
	}
	return verify.New(verify.WithRules(verify.RulesFromConfig(cfg))), nil
}
