// Package server assembles the fastchat service and serves it over HTTP.
//
// Routes:
//
//	GET  /health     database and presence status
//	GET  /ws         WebSocket sessions (origin-checked, token in first frame)
//	     /api/v1/... REST API
package server
