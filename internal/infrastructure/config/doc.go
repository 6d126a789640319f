// Package config handles loading and validating the irrigation controller configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with IRRIGATION_* environment variables
//   - Validation of required fields (all problems reported at once)
//   - Default value handling
//
// Sensitive values (MQTT password, InfluxDB token) should be set via
// environment variables rather than committed to the config file.
//
// Usage:
//
//	cfg, err := config.Load(config.PathFromEnv())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	loc := cfg.Location()
package config
