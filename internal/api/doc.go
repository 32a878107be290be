// Package api serves the node status API under /api/v1.
//
// GET /health is open. GET /state (scope read) returns the node snapshot and
// GET /telemetry (scope telemetry) streams events as SSE. Bearer tokens are
// required only when the server is built with an auth middleware.
package api
