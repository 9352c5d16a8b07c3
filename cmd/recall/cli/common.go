package cli

import (
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/felixgeelhaar/recall/internal/store"
)

// Configuration keys persisted in the metadata store.
const (
	configResultsDir = "results_dir"
	configModel      = "model"
)

func defaultDataDir() string {
	return filepath.Join(xdg.DataHome, "recall")
}

func openStore() (store.Storage, error) {
	s, err := store.NewSQLiteStore(filepath.Join(dataDir, "metadata.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}
	return s, nil
}

// setting resolves a value from an explicit flag, then the stored
// configuration, then def.
func setting(s store.Storage, flagValue string, flagSet bool, key, def string) string {
	if flagSet {
		return flagValue
	}
	if v, err := s.GetConfig(key); err == nil && v != "" {
		return v
	}
	return def
}

func resultsDirFor(s store.Storage, flagValue string, flagSet bool) string {
	return setting(s, flagValue, flagSet, configResultsDir, filepath.Join(dataDir, "results"))
}
