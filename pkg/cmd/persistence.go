package cmd

import (
	"strings"

	"github.com/botgrid/botgrid/pkg/persistence"
	"github.com/botgrid/botgrid/pkg/persistence/file"
)

var supportedPersistenceProviders = []string{"file", "postgresql", "mongodb"}

// NewPersistence builds the persistence layer from the database URL scheme.
// Unknown schemes fall back to the file implementation.
func NewPersistence(databaseURL string) persistence.Persistence {
	provider := parsePersistenceProvider(databaseURL)

	switch provider {
	// case "postgresql":
	// 	return postgresql.NewPersistence(databaseURL)
	// case "mongodb":
	// 	return mongodb.NewPersistence(databaseURL)
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
