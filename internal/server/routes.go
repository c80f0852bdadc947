package server

import "net/http"

// APIPrefix is where the REST API is mounted.
const APIPrefix = "/api/v1"

// Routes returns the service's HTTP routes.
func (a *App) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.HealthHandler)
	mux.HandleFunc("GET /ws", a.WebSocketHandler())
	mux.Handle(APIPrefix+"/", http.StripPrefix(APIPrefix, a.api.Handler()))
	return mux
}
