// Package config loads the ropchain CLI configuration from JSON or YAML.
package config
