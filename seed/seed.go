// Package seed installs the default source catalogue.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pevans/newsharvest/store"
	"gopkg.in/yaml.v3"
)

//go:embed sources.yaml
var catalogue []byte

// Store is the persistence seeding needs.
type Store interface {
	ListSources(ctx context.Context, activeOnly bool) ([]store.Source, error)
	CreateSource(ctx context.Context, source store.NewSource) (*store.Source, error)
	GetSettings(ctx context.Context) (*store.Settings, error)
	UpdateSettings(ctx context.Context, settings store.Settings) (*store.Settings, error)
}

// Result counts what Apply did.
type Result struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Sources returns the built-in source catalogue.
func Sources() ([]store.NewSource, error) {
	return Parse(catalogue)
}

// Parse decodes a YAML source catalogue.
func Parse(data []byte) ([]store.NewSource, error) {
	var sources []store.NewSource
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("failed to parse source catalogue: %w", err)
	}

	for i, source := range sources {
		if source.Name == "" || source.URL == "" {
			return nil, fmt.Errorf("catalogue entry %d: name and url are required", i)
		}
		if source.Selectors != nil {
			if err := source.Selectors.Validate(); err != nil {
				return nil, fmt.Errorf("catalogue entry %q: %w", source.Name, err)
			}
		}
	}

	return sources, nil
}

// Apply creates every catalogue source whose URL is not stored yet and
// persists the settings row. Existing sources are left untouched, so Apply
// can be run repeatedly.
func Apply(ctx context.Context, s Store, sources []store.NewSource, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var result Result

	settings, err := s.GetSettings(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to get settings: %w", err)
	}
	if _, err := s.UpdateSettings(ctx, *settings); err != nil {
		return result, fmt.Errorf("failed to save settings: %w", err)
	}

	existing, err := s.ListSources(ctx, false)
	if err != nil {
		return result, fmt.Errorf("failed to list sources: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, source := range existing {
		known[source.URL] = true
	}

	for _, source := range sources {
		if known[source.URL] {
			result.Skipped++
			continue
		}

		created, err := s.CreateSource(ctx, source)
		if errors.Is(err, store.ErrDuplicateURL) {
			result.Skipped++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("failed to create source %s: %w", source.Name, err)
		}

		known[source.URL] = true
		result.Created++
		logger.Info("Seeded source", "name", created.Name, "id", created.ID)
	}

	return result, nil
}
