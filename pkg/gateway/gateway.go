// Package gateway provides the public API for embedding the dispatch gateway.
// This is the stable API for external consumers.
package gateway

import (
	"github.com/tjfontaine/polyglot-dispatch/internal/runtime"
)

// Gateway is the main entry point for running the dispatch pipeline.
// See internal/runtime.Gateway for full documentation.
type Gateway = runtime.Gateway

// Option is a functional option for configuring a Gateway.
type Option = runtime.Option

// New creates a new Gateway with the given options.
// Example:
//
//	gw, err := gateway.New(
//	    gateway.WithFileConfig("config.yaml"),
//	    gateway.WithSQLite("./data/routes.db"),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithFileConfig = runtime.WithFileConfig
	WithConfig     = runtime.WithConfig

	// Storage
	WithSQLite = runtime.WithSQLite
	WithStore  = runtime.WithStore

	// Pipeline stages
	WithDispatchers      = runtime.WithDispatchers
	WithHandlerFactories = runtime.WithHandlerFactories
	WithHandlerRegistry  = runtime.WithHandlerRegistry
	WithFallback         = runtime.WithFallback

	// Advanced options
	WithLogger    = runtime.WithLogger
	WithTransport = runtime.WithTransport
	WithMetrics   = runtime.WithMetrics
)
