// Package config provides configuration management for the trading host.
//
// Configuration is loaded from environment variables prefixed with
// TRADEHOST_ using the env package. When TRADEHOST_CONFIG_FILE names a YAML
// file, its values are overlaid on top of the environment; this is the only
// way to declare the sources served by the in-process platform.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
