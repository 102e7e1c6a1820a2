/*
Package httpserver exposes the watch-state store over a JSON HTTP API.

Every endpoint is a thin wrapper around a db.Manager call. Items are addressed
by their source and id path segments; the server never sees the composite
storage key. Either segment may contain reserved characters as long as they
are percent-encoded.

# API Endpoints

  - POST /api/users - Register a user
  - POST /api/login - Verify credentials, responds {"ok": bool}
  - GET /api/users - List user names
  - GET /api/users/{user} - Responds {"exists": bool}
  - DELETE /api/users/{user} - Delete a user and everything they own
  - PUT /api/users/{user}/password - Change a password
  - GET|PUT|DELETE /api/users/{user}/playrecords/{source}/{id}
  - GET /api/users/{user}/playrecords - All play records keyed by "source+id"
  - GET|PUT|DELETE /api/users/{user}/favorites/{source}/{id}
  - GET /api/users/{user}/favorites/{source}/{id}/status - Responds {"favorited": bool}
  - GET /api/users/{user}/favorites
  - GET|PUT|DELETE /api/users/{user}/skipconfigs/{source}/{id}
  - GET /api/users/{user}/skipconfigs
  - GET|POST|DELETE /api/users/{user}/searchhistory - DELETE takes an optional ?keyword=
  - GET|PUT /api/admin/config - Global site configuration
  - POST /api/admin/clear - Remove all users and the admin config
  - GET /api/storage - Name of the active backend
  - GET /livez - Liveness check
  - GET /readyz - Readiness check
  - GET /drain - Gracefully mark server as not ready
  - GET /undrain - Mark server as ready

Missing items respond 404. Backend failures respond 500 with a generic body
and are logged with the backend name. When the process runs on the empty
backend writes succeed and reads come back empty.

# Example Usage

	cfg := &httpserver.HTTPServerConfig{
		ListenAddr:               ":8080",
		Log:                      logger,
		DrainDuration:            30 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              5 * time.Second,
		WriteTimeout:             10 * time.Second,
	}

	handler := httpserver.NewHandler(db.New(storageConfig, logger), logger)

	server, err := httpserver.New(cfg, handler)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	server.RunInBackground()
	defer server.Shutdown()
*/
package httpserver
