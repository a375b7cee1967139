// Package config loads the storefront client configuration from YAML.
//
// Every scalar value may reference the environment (`${VAR}`, which must be
// set) or a secret (`secretref:file:<path>`, relative to the config file's
// directory). A missing file yields Default().
package config
