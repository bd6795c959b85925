// Package config handles loading and validating admin console configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (CONSOLE_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Secrets (storage encryption key, Redis, MQTT and InfluxDB credentials)
//     should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load(config.ResolvePath(*configFlag))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Backend.BaseURL)
package config
