package server

import (
	"net/http"

	"brainlane/internal/proxy"
	"brainlane/internal/realtime"
)

// Routes builds the full HTTP handler: the JSON API behind withCORS, the
// websocket endpoint, and the streaming proxy (which carries its own CORS
// contract and is mounted unwrapped).
func (a *API) Routes(proxyHandler *proxy.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/projects", a.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{id}", a.handleGetProject)
	mux.HandleFunc("POST /api/projects/{id}/analyze", a.handleAnalyze)
	mux.HandleFunc("POST /api/projects/{id}/pipeline", a.handleRunPipeline)
	mux.HandleFunc("GET /api/jobs/{id}", a.handleGetJob)
	mux.HandleFunc("GET /healthz", a.handleHealthz)

	root := http.NewServeMux()
	root.Handle("/api/openai", proxyHandler)
	root.Handle("/ws/projects", realtime.NewWSHandler(a.hub))
	root.Handle("/", withCORS(mux))
	return root
}
