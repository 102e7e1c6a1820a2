// Package main (cmd/httpserver) runs the watch-state API server.
//
// The server selects one storage backend at startup from the --storage-type
// flag (or STORAGE_TYPE / NEXT_PUBLIC_STORAGE_TYPE) and keeps it for the life
// of the process. A backend that is misconfigured or unreachable is replaced
// by the empty backend and a warning is logged; the server still starts.
//
// Backend settings are read in three layers, each overriding the previous one:
// built-in defaults, the [storage] table of the --config TOML file, and
// flags or their environment variables.
//
// The server implements graceful shutdown on receiving termination signals (SIGINT/SIGTERM)
// and supports health checks, drain/undrain and optional profiling endpoints.
//
// Example usage with Redis:
//
//	watchstate-server --listen-addr=0.0.0.0:8080 \
//	  --storage-type=redis --redis-url=redis://localhost:6379/0
//
// Example usage with a config file:
//
//	# watchstate.toml
//	[storage]
//	type = "bolt"
//	bolt_path = "/var/lib/watchstate/state.db"
//	key_prefix = "prod:"
//
//	watchstate-server --config=watchstate.toml --log-json
package main
