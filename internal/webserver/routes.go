package webserver

import (
	"net/http"
)

func (ws *WebServer) setupRoutes() {
	if ws.config.EnableCORS {
		ws.router.Use(ws.corsMiddleware)
	}
	ws.router.Use(ws.loggingMiddleware)

	ws.setupBasicRoutes()
	ws.setupSinkRoutes()
}

func (ws *WebServer) setupBasicRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.HandleFunc("/ws/stats", ws.handleStatsStream).Methods("GET")

	if ws.metrics != nil {
		ws.router.Handle("/metrics", ws.metrics).Methods("GET")
	}
}

func (ws *WebServer) setupSinkRoutes() {
	api := ws.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/filters", ws.handleListFilters).Methods("GET")
	api.HandleFunc("/sinks", ws.handleListSinks).Methods("GET")
	api.HandleFunc("/sinks/{name}", ws.handleGetSink).Methods("GET")
	api.HandleFunc("/sinks/{name}/fetch", ws.handleFetch).Methods("POST")
	api.HandleFunc("/sinks/{name}/fetch", ws.handlePreflight).Methods("OPTIONS")
	api.HandleFunc("/tracks", ws.handleListTracks).Methods("GET")

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.writeError(w, http.StatusNotFound, "not found: "+r.URL.Path)
	})
}

// handlePreflight 只应答 OPTIONS，不触碰队列
func (ws *WebServer) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "POST, OPTIONS")
	w.WriteHeader(http.StatusNoContent)
}
