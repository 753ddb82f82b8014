// Package config provides centralized configuration management for the
// OpsUnify system. It handles loading configuration from multiple sources,
// validation, and provides a type-safe API for accessing configuration
// values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (YAML)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern OPSUNIFY_* for namespacing:
//
//	OPSUNIFY_SERVER_PORT=8080
//	OPSUNIFY_LOGGING_LEVEL=info
//	OPSUNIFY_PIPELINE_DEFAULT_VARIANT=dashboard
//	OPSUNIFY_MARKET_DATA_ENABLED=true
//
// The config file location can be overridden with OPSUNIFY_CONFIG.
//
// # Path Management
//
// The package provides centralized path management through the Paths type,
// which handles all file system paths relative to the executable location:
//
//	paths, err := config.GetPaths()
//	uploadPath := paths.GetUploadPath("operations.xlsx")
//	reportPath := paths.GetReportPath("resultado_unificado.xlsx")
//
// # Validation
//
// All configuration is validated at load time with go-playground/validator
// struct tags: ports in range, positive timeouts, known variant names, a
// well-formed quote endpoint URL.
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
