package cli

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arloliu/go-homeworks/hwi"
	"github.com/arloliu/go-homeworks/hwiconn"
)

// commandRequest is the body of POST /commands. Either Command or Raw is set.
type commandRequest struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	Raw      string   `json:"raw"`
	Priority *int     `json:"priority"`
}

type stateResponse struct {
	State            string `json:"state"`
	PendingRequests  int    `json:"pending_requests"`
	PendingResponses int    `json:"pending_responses"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// newHandler returns the HTTP API of a coordinator:
//
//	GET  /metrics   Prometheus metrics gathered from gatherer
//	GET  /state     connection state and queue lengths
//	POST /commands  queue a command
func newHandler(coord *hwiconn.Coordinator, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
		transport := coord.Transport()
		writeJSON(w, http.StatusOK, stateResponse{
			State:            coord.State().String(),
			PendingRequests:  transport.PendingRequests(),
			PendingResponses: transport.PendingResponses(),
		})
	})

	r.Post("/commands", func(w http.ResponseWriter, r *http.Request) {
		var body commandRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		req, err := body.toRequest()
		if err == nil {
			err = coord.Enqueue(req)
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		w.WriteHeader(http.StatusAccepted)
	})

	return r
}

func (b commandRequest) toRequest() (hwi.RequestMessage, error) {
	var req hwi.RequestMessage
	switch {
	case b.Command != "" && b.Raw != "":
		return req, errors.New("command and raw are mutually exclusive")
	case b.Command != "":
		req = hwi.NewCommandRequest(b.Command, b.Args...)
	case b.Raw != "":
		req = hwi.NewDataRequest(b.Raw, hwi.DefaultPriority)
	default:
		return req, errors.New("command or raw is required")
	}

	if b.Priority != nil {
		req = req.WithPriority(*b.Priority)
	}

	return req, req.Validate()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
