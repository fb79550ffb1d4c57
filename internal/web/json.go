package web

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/sweeney/carpi-telemetry/internal/collector"
	"github.com/sweeney/carpi-telemetry/internal/report"
	"github.com/sweeney/carpi-telemetry/internal/status"
)

// maxBodyBytes bounds an ingestion request. A full offline backlog of
// heartbeats carrying positions stays well under this.
const maxBodyBytes = 16 << 20

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.agg.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap, s.config(), showPos(r)))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	snap := s.agg.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatHistoryJSON(s.agg.History(), snap.Position))
}

// handleIngest returns the handler for a device endpoint. Entries without
// a kind are treated as def.
func (s *Server) handleIngest(def report.Kind, ok string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			log.Printf("web: %s: read body: %v", r.URL.Path, err)
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		batch, err := report.DecodeBatch(body)
		if err != nil {
			log.Printf("web: %s: malformed body: %v", r.URL.Path, err)
			http.Error(w, "malformed request", http.StatusBadRequest)
			return
		}
		for i := range batch {
			if batch[i].Kind == "" {
				batch[i].Kind = def
			}
		}

		alerts, err := s.agg.Ingest(batch)
		switch {
		case errors.Is(err, collector.ErrUnauthorized):
			log.Printf("web: %s: rejected batch of %d from %s: %v", r.URL.Path, len(batch), r.RemoteAddr, err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		case err != nil:
			log.Printf("web: %s: %v", r.URL.Path, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		for _, a := range alerts {
			log.Printf("web: sensor %d is now %s", a.SensorID, a.Door)
			if s.alerts != nil {
				s.alerts.Enqueue(a)
			}
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(ok))
	}
}
