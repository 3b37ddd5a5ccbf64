package api

import (
	"TaxiGovExplorer/src/processor"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// LogSource is the subscription side of storage.Logger.
type LogSource interface {
	Subscribe() <-chan string
	Unsubscribe(<-chan string)
}

// FrequencyReader serves tables when the in-memory result lacks them,
// e.g. right after a restart. storage.FrequencyCache implements it.
type FrequencyReader interface {
	Get(ctx context.Context, base, column string) (processor.FrequencyTable, bool, error)
}

// Server holds the latest pipeline result for the HTTP handlers.
type Server struct {
	mu     sync.RWMutex
	latest *processor.Result

	logs  LogSource
	cache FrequencyReader
}

func NewServer(logs LogSource, cache FrequencyReader) *Server {
	return &Server{logs: logs, cache: cache}
}

// Publish makes res the result served by the API.
func (s *Server) Publish(res *processor.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = res
}

func (s *Server) Latest() *processor.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// writeJSON encodes v before writing the header so an unencodable value
// becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{"error": "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

// frequencyResponse adds the sum of the listed counts to a table.
type frequencyResponse struct {
	processor.FrequencyTable
	Total int `json:"total"`
}

func newFrequencyResponse(t processor.FrequencyTable) frequencyResponse {
	return frequencyResponse{FrequencyTable: t, Total: t.Total()}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// result writes 503 and returns nil while no run has finished yet.
func (s *Server) result(w http.ResponseWriter) *processor.Result {
	res := s.Latest()
	if res == nil {
		writeError(w, http.StatusServiceUnavailable, "no data loaded yet")
	}
	return res
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if res := s.Latest(); res != nil {
		resp["last_run"] = res.Summary.GeneratedAt.Format(time.RFC3339)
		resp["rows"] = res.Summary.Rows
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) Summary(w http.ResponseWriter, r *http.Request) {
	if res := s.result(w); res != nil {
		writeJSON(w, http.StatusOK, res.Summary)
	}
}

func (s *Server) Frequencies(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	base, column := vars["base"], vars["column"]
	if column != "reason" && column != "agency" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown column %q, want reason or agency", column))
		return
	}

	if res := s.Latest(); res != nil {
		if t, ok := res.Frequencies(base, column); ok {
			writeJSON(w, http.StatusOK, newFrequencyResponse(t))
			return
		}
	}
	if s.cache != nil {
		t, ok, err := s.cache.Get(r.Context(), base, column)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		if ok {
			writeJSON(w, http.StatusOK, newFrequencyResponse(t))
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("no %s table for base %s", column, base))
}

func (s *Server) Layers(w http.ResponseWriter, r *http.Request) {
	field := mux.Vars(r)["field"]
	switch field {
	case "reason", "agency", "base":
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown field %q", field))
		return
	}
	if res := s.result(w); res != nil {
		writeJSON(w, http.StatusOK, processor.Layers(res.Rides, field))
	}
}

func (s *Server) Clusters(w http.ResponseWriter, r *http.Request) {
	if res := s.result(w); res != nil {
		writeJSON(w, http.StatusOK, res.Clusters)
	}
}

func (s *Server) HeatFrames(w http.ResponseWriter, r *http.Request) {
	pt, err := processor.ParsePointType(r.URL.Query().Get("point"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if res := s.result(w); res != nil {
		writeJSON(w, http.StatusOK, res.Frames(pt))
	}
}

func (s *Server) HeatCells(w http.ResponseWriter, r *http.Request) {
	if res := s.result(w); res != nil {
		writeJSON(w, http.StatusOK, res.HeatCells)
	}
}

// Logs streams log entries until the client goes away.
func (s *Server) Logs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeError(w, http.StatusNotFound, "log stream disabled")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	logChan := s.logs.Subscribe()
	defer s.logs.Unsubscribe(logChan)

	for {
		select {
		case msg, ok := <-logChan:
			if !ok {
				return
			}
			if _, err := fmt.Fprint(w, msg); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}
