package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/autogate/internal/gateagent/bridge"
	"github.com/autopeer-io/autogate/internal/gateagent/core"
	"github.com/autopeer-io/autogate/pkg/log"
)

// BarrierResponse acknowledges a staged operator command.
type BarrierResponse struct {
	Gate   string `json:"gate"`
	Action string `json:"action"`
	Staged bool   `json:"staged"`
}

// DistanceRequest sets a simulated sensor reading in centimetres.
type DistanceRequest struct {
	Distance *int `json:"distance"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "Failed to write response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Status.Status())
}

// handleBarrier stages an operator command for the next controller tick.
// The barrier moves asynchronously, so the reply is 202.
func (s *Server) handleBarrier(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	g, err := core.ParseGate(vars["gate"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	a, err := core.ParseAction(vars["action"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Info("Operator barrier command", "gate", g.String(), "action", a.String())
	s.deps.Sink.Stage(g, a, core.SourceOperator)

	writeJSON(w, http.StatusAccepted, BarrierResponse{Gate: g.String(), Action: a.String(), Staged: true})
}

func (s *Server) handleDistance(w http.ResponseWriter, r *http.Request) {
	g, err := core.ParseGate(mux.Vars(r)["gate"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var req DistanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Distance == nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.deps.Sim.SetDistance(g, *req.Distance); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBridgeStream pushes the current bridge connectivity and then every
// change until the client goes away.
func (s *Server) handleBridgeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error(err, "Bridge stream upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := s.deps.Bridge.Subscribe()
	defer cancel()

	// Reads only detect the close; the stream is one-way.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case online := <-updates:
			msg := bridge.Status{Online: online, Timestamp: time.Now().Unix()}
			_ = conn.SetWriteDeadline(time.Now().Add(s.options.Timeout))
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("Bridge stream closed", "error", err)
				return
			}
		}
	}
}
