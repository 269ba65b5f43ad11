// Package config loads runtime configuration using Viper with TOML as the
// file format.
//
// Sources, lowest precedence first: compiled-in defaults, an lrt.toml file
// (explicit path or the working directory), then LRT_* environment
// variables. LAMBDA_TASK_ROOT is honored as the task root when LRT_TASK_ROOT
// is unset. Nested keys map to environment names with underscores, e.g.
// bytecode.max_decoded_size is LRT_BYTECODE_MAX_DECODED_SIZE. List values
// from the environment are comma separated.
package config
