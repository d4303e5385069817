package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mmcdole/mangashelf/internal/domain"
)

// Supported drivers
const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

// Open creates the store selected by driver under baseDir.
func Open(driver, baseDir, remoteURL string) (domain.Store, error) {
	switch driver {
	case "", DriverBolt:
		return NewBoltStore(baseDir, remoteURL)
	case DriverSQLite:
		dir := baseDir
		if remoteURL != "" {
			dir = filepath.Join(baseDir, hashRemoteURL(remoteURL))
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		return NewSQLiteStore(filepath.Join(dir, "mangashelf.sqlite"))
	default:
		return nil, fmt.Errorf("unknown store driver: %s", driver)
	}
}
