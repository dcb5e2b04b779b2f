// Package config loads the tender dashboard configuration.
//
// Sources, highest priority first:
//
//	1. Environment variables prefixed with TENDERS_ (a .env file is loaded first when present)
//	2. A YAML file: $TENDERS_CONFIG_FILE, config.yaml or configs/config.yaml
//	3. Struct defaults
//
// Examples:
//
//	TENDERS_SERVER_PORT=8080
//	TENDERS_DATA_SOURCE=https://example.org/tenders.csv
//	TENDERS_DATA_SOURCE=sheets://1AbC.../Sheet1!A1:Z
//	TENDERS_LOGGING_LEVEL=debug
//
// The loaded Config is validated with go-playground/validator struct tags.
package config
