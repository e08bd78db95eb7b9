/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application
 * dependencies. The Container is the single source of truth for all service
 * instances.
 */
package di

import (
	"github.com/aristath/runway/internal/calc"
	"github.com/aristath/runway/internal/captable"
	"github.com/aristath/runway/internal/database"
	"github.com/aristath/runway/internal/engine"
	"github.com/aristath/runway/internal/montecarlo"
	"github.com/aristath/runway/internal/scenarios"
	"github.com/aristath/runway/internal/store"
	"github.com/aristath/runway/internal/whatif"
)

// Container holds all dependencies for the application.
//
// Created by Wire(); everything is injected via constructors. The layering is
// strictly bottom-up: database, store, registry, scenarios, engine, then the
// analysis drivers on top.
type Container struct {
	// EntitiesDB is the embedded SQLite file of record for entities.
	EntitiesDB *database.DB

	Store     *store.Store       // persistent, indexed entity store
	Registry  *calc.Registry     // calculator dispatch table (built-ins registered)
	Scenarios *scenarios.Manager // named scenario definitions
	Engine    *engine.Engine     // cash-flow calculation engine

	MonteCarlo *montecarlo.Runner    // randomized simulation driver
	WhatIf     *whatif.Driver        // sensitivity / breakeven driver
	CapTable   *captable.Calculator  // ownership, dilution, waterfall
}

// Close releases held resources. Safe to call once after the container is no
// longer in use.
func (c *Container) Close() error {
	if c.EntitiesDB != nil {
		return c.EntitiesDB.Close()
	}
	return nil
}
