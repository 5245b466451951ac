// Package config provides configuration loading for resolution runs.
//
// # Key Features
//
// - EngineConfig: one structure for the survey source, the column registry
// file, broadcast policies, logging and tracing
// - Environment variable substitution with ${VAR_NAME} syntax in YAML files
// - Viper-based loading with OPENFISCA_ environment overrides for the CLI
// - Defaults and validation
//
// # Usage
//
//	cfg, err := config.LoadEngine("survey.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// ## Environment Variable Substitution
//
// Values written as ${NAME} are replaced by the environment before parsing:
//
//	source:
//	  driver: pgx
//	  dsn: ${SURVEY_DSN}
//
// ## Environment Overrides
//
// When loading through viper, every key can be overridden with an
// OPENFISCA_ prefixed variable, dots becoming underscores:
//
//	OPENFISCA_SOURCE_LAYOUT=flat openfisca resolve --config survey.yaml ...
//
// Any other struct can be read with Load and written with Save.
package config
