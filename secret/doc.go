// Package secret resolves configuration values that must not live in the
// config file itself.
//
// Two forms are supported:
//   - `${VAR}` reads an environment variable and fails if it is unset
//     (see ExpandEnvStrict). `$$` is a literal dollar sign.
//   - `secretref:<provider>:<ref>` asks a Provider, e.g.
//     `secretref:file:/run/secrets/storefront_token`. References may also
//     appear inside a longer value.
package secret
