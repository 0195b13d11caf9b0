// Package config loads and validates the chemspyd configuration.
//
// Defaults are overlaid by a YAML file and then by CHEMSPYD_* environment
// variables; Validate reports every problem in one error. Credentials
// (MQTT password, InfluxDB token) should come from the environment rather
// than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Channel.Dir)
package config
