// Package config provides centralized configuration management for the
// matchset pipeline. It handles loading configuration from multiple sources,
// validation, and provides a type-safe API for accessing configuration
// values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern MATCHSET_* for namespacing:
//
//	MATCHSET_PIPELINE_SPAN=10
//	MATCHSET_PATHS_INPUT_DIR=data/team_stats
//	MATCHSET_PATHS_OUTPUT_FILE=data/training/matchups.csv
//	MATCHSET_LOGGING_LEVEL=info
//	MATCHSET_TELEMETRY_METRIC_EXPORTER=prometheus
//
// Tournament intervals carry no env mapping; date range lists do not fit
// flat variables, so they come from the YAML file only:
//
//	tournament:
//	  intervals:
//	    - start: "2010-03-16"
//	      end: "2010-04-05"
//
// # Validation
//
// All configuration is validated at load time to ensure:
//
//	- Span is a positive game count
//	- Identifier fields include date, home and away
//	- Interval dates parse, are ordered and do not overlap
//	- Paths are present
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
