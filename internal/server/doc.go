// Package server runs the statekeeper HTTP API and gRPC health service.
//
// # Architecture
//
//	┌─────────────────────────────────────────────┐
//	│                   Server                    │
//	│  ┌──────────────┐      ┌─────────────────┐  │
//	│  │ HTTP API     │      │ gRPC health     │  │
//	│  │ /api/...     │      │ statekeeper.<ns>│  │
//	│  └──────┬───────┘      └────────┬────────┘  │
//	│         │                       │           │
//	│  ┌──────▼───────┐               │           │
//	│  │ commands     │               │           │
//	│  └──────┬───────┘               │           │
//	│  ┌──────▼───────────────────────▼────────┐  │
//	│  │ prefs.Service → collection → kvstore  │  │
//	│  └───────────────────────────────────────┘  │
//	└─────────────────────────────────────────────┘
//
// # HTTP Endpoints
//
//	GET    /health            liveness, no auth
//	GET    /api/settings      {"settings": {...} | null}
//	PUT    /api/settings      replace settings
//	GET    /api/history       {"commands": [...]}, ?limit=N
//	POST   /api/history       append a voice command
//	DELETE /api/history       clear the command history
//	GET    /api/scans/{id}    {"scan": {...} | null}
//	POST   /api/scans         insert or replace a scan
//	DELETE /api/scans         clear the scan cache
//	GET    /api/status        collection sizes
//
// Errors are returned as {"error": "<message>"} with 400 for invalid input,
// 503 when the store cannot be opened and 500 when a save fails.
// When auth.jwt_secret is set, /api/ routes require a bearer token.
//
// # Lifecycle
//
//	srv, err := server.New(cfg, logger)
//	err = srv.Run(ctx) // blocks until ctx is canceled
//
// Run performs a graceful shutdown bounded by server.shutdown_timeout and
// closes the store after in-flight mutations finish.
package server
