// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"log/slog"

	"github.com/botgrid/botgrid/pkg/registry"
)

// NewRegistry builds the action kind registry with the built-in kinds.
func NewRegistry(log *slog.Logger) *registry.Registry {
	return registry.NewRegistry(log)
}
