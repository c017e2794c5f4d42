// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/dukex/flowtransfer/pkg/plugins/dedup"
	"github.com/dukex/flowtransfer/pkg/plugins/report"
	"github.com/dukex/flowtransfer/pkg/plugins/validate"
	"github.com/dukex/flowtransfer/pkg/protocol"
	"github.com/dukex/flowtransfer/pkg/registry"
)

func registerNativeDeduplicators(reg *registry.Registry) error {
	return registerAll(reg, dedup.NewStandard(), dedup.NewStrict())
}

func registerNativeValidators(reg *registry.Registry) error {
	schema, err := validate.NewSchema()
	if err != nil {
		return fmt.Errorf("failed to compile workflow schema: %w", err)
	}

	return registerAll(reg, validate.NewIntegrity(), schema)
}

func registerNativeReporters(reg *registry.Registry, outputDir string) error {
	return registerAll(reg, report.NewMarkdown(outputDir), report.NewJSON(outputDir), report.NewCSV(outputDir))
}

func registerAll(reg *registry.Registry, plugins ...protocol.Plugin) error {
	for _, p := range plugins {
		err := reg.Register(p)
		if err != nil {
			return err
		}
	}

	return nil
}

// NewRegistry registers the built-in plugins, then any shared-object plugins
// found under pluginsPath, which may replace built-ins of the same name.
func NewRegistry(log *slog.Logger, outputDir, pluginsPath string) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)

	for _, register := range []func(*registry.Registry) error{
		registerNativeDeduplicators,
		registerNativeValidators,
		func(r *registry.Registry) error { return registerNativeReporters(r, outputDir) },
	} {
		err := register(reg)
		if err != nil {
			return nil, err
		}
	}

	if pluginsPath == "" {
		return reg, nil
	}

	loaded, err := reg.LoadPlugins(pluginsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load plugins from %s: %w", pluginsPath, err)
	}

	if loaded > 0 {
		log.Info("Loaded external plugins", "count", loaded, "path", pluginsPath)
	}

	return reg, nil
}
