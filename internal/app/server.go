package app

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxenio/voxen/internal/engine"
	"github.com/voxenio/voxen/internal/health"
	"github.com/voxenio/voxen/internal/observe"
)

// subsystemStatus is the per-capability block of the /statz response.
type subsystemStatus struct {
	Info     engine.Info               `json:"info"`
	Outcomes map[string]engine.Outcome `json:"outcomes"`
}

// statusResponse is the JSON body of the /statz endpoint.
type statusResponse struct {
	Recognition *subsystemStatus `json:"recognition,omitempty"`
	Synthesis   *subsystemStatus `json:"synthesis,omitempty"`
}

// switchRequest is the JSON body of the /switch endpoint.
type switchRequest struct {
	Kind    engine.Kind `json:"kind"`
	Backend string      `json:"backend"`
}

// Routes builds the diagnostics HTTP handler: health and readiness probes,
// Prometheus metrics, backend status, and manual backend switching.
func (a *App) Routes() http.Handler {
	checkers := []health.Checker{
		health.ReadyChecker("recognition", a.deps.Recognizer.Ready),
	}
	if a.deps.Synthesizer != nil {
		checkers = append(checkers, health.ReadyChecker("synthesis", a.deps.Synthesizer.Ready))
	}
	if a.deps.Responder != nil {
		checkers = append(checkers, health.PingChecker("reply", a.deps.Responder.Ready))
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /statz", a.handleStatz)
	mux.HandleFunc("POST /switch", a.handleSwitch)

	return observe.Middleware(a.metrics)(mux)
}

// handleStatz reports each subsystem's selection state and per-backend
// outcome counters.
func (a *App) handleStatz(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Recognition: &subsystemStatus{
			Info:     a.deps.Recognizer.Info(),
			Outcomes: a.deps.Recognizer.Stats().Snapshot(),
		},
	}
	if a.deps.Synthesizer != nil {
		resp.Synthesis = &subsystemStatus{
			Info:     a.deps.Synthesizer.Info(),
			Outcomes: a.deps.Synthesizer.Stats().Snapshot(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSwitch pins a subsystem to a named backend. Returns 409 when the
// backend is not registered or not ready.
func (a *App) handleSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	var ok bool
	switch req.Kind {
	case engine.KindRecognition:
		ok = a.deps.Recognizer.Switch(req.Backend)
	case engine.KindSynthesis:
		if a.deps.Synthesizer == nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "synthesis is not configured"})
			return
		}
		ok = a.deps.Synthesizer.Switch(req.Backend)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind must be recognition or synthesis"})
		return
	}

	if !ok {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "backend " + req.Backend + " is not registered or not ready",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"current": req.Backend})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode failure"}`, http.StatusInternalServerError)
	}
}
