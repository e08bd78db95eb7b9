// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/runway/internal/calc"
	"github.com/aristath/runway/internal/captable"
	"github.com/aristath/runway/internal/config"
	"github.com/aristath/runway/internal/database"
	"github.com/aristath/runway/internal/engine"
	"github.com/aristath/runway/internal/montecarlo"
	"github.com/aristath/runway/internal/scenarios"
	"github.com/aristath/runway/internal/store"
	"github.com/aristath/runway/internal/whatif"
)

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations:
// 1. Open the entity database
// 2. Build the entity store (loads persisted entities)
// 3. Register calculators and scenarios
// 4. Construct the engine and the analysis drivers
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	entitiesDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/entities.db",
		Profile: database.ProfileStandard,
		Name:    "entities",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize entities database: %w", err)
	}

	entityStore, err := store.New(entitiesDB, log)
	if err != nil {
		entitiesDB.Close()
		return nil, fmt.Errorf("failed to initialize entity store: %w", err)
	}

	registry := calc.NewRegistry(log)
	calc.RegisterBuiltins(registry)

	scenarioManager := scenarios.NewManager(log)
	if cfg.ScenariosDir != "" {
		if _, err := scenarioManager.Load(cfg.ScenariosDir); err != nil {
			entitiesDB.Close()
			return nil, fmt.Errorf("failed to load scenarios from %s: %w", cfg.ScenariosDir, err)
		}
	}

	engineCfg := engine.Config{
		Workers:         cfg.WorkerPoolSize,
		CacheMaxEntries: cfg.CacheMaxEntries,
		StartingCash:    cfg.StartingCash,
	}
	eng := engine.New(entityStore, registry, scenarioManager, engineCfg, log)

	container := &Container{
		EntitiesDB: entitiesDB,
		Store:      entityStore,
		Registry:   registry,
		Scenarios:  scenarioManager,
		Engine:     eng,
		MonteCarlo: montecarlo.NewRunner(entityStore, registry, scenarioManager, engineCfg, log),
		WhatIf:     whatif.NewDriver(eng, entityStore, scenarioManager, log),
		CapTable:   captable.New(entityStore, log),
	}

	log.Info().
		Int("entities", entityStore.Count()).
		Int("calculators", registry.Count()).
		Msg("Dependency injection wiring completed successfully")

	return container, nil
}
