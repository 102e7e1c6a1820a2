// Package main (cmd/admin) implements maintenance commands that operate
// directly on watch-state storage, without going through the API server.
//
// The storage flags are shared with the server. Unlike the server, commands
// fail when the configured backend is unavailable instead of silently
// running on the empty backend.
//
// Commands:
//
//	check         - Print the name of the backend the configuration selects
//	users         - List registered users
//	add-user      - Register a user
//	set-password  - Change the password of an existing user
//	delete-user   - Delete a user with all their records
//	get-config    - Print the admin configuration as JSON
//	set-config    - Replace the admin configuration from a JSON file
//	clear         - Delete every user and the admin configuration (requires --yes)
//
// Example:
//
//	watchstate-admin --storage-type=redis --redis-url=redis://localhost:6379 users
//	watchstate-admin --config=watchstate.toml set-config site.json
package main
