// Package ops serves the small operational HTTP surface every daemon
// carries: liveness, a status snapshot and Prometheus metrics.
package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/philwieland/openrail-sub000/internal/store"
)

// Server is one daemon's ops endpoint.
type Server struct {
	Prog    string
	Build   string
	Store   *store.Store
	Logger  *log.Logger
	Started time.Time

	srv *http.Server
}

type statusPayload struct {
	Program       string `json:"program"`
	Build         string `json:"build"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	TrustActual   int64  `json:"last_trust_actual"`
	TrustHandled  int64  `json:"last_trust_processed"`
	VSTPHandled   int64  `json:"last_vstp_processed"`
	TDHandled     int64  `json:"last_td_processed"`
}

// Start listens in the background. Errors after startup are logged.
func (s *Server) Start(port int) {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		s.Logger.Printf("ops server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Logger.Printf("MINOR ops server: %v", err)
		}
	}()
}

// Stop shuts the listener down, bounded by ctx.
func (s *Server) Stop(ctx context.Context) {
	if s.srv != nil {
		_ = s.srv.Shutdown(ctx)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	p := statusPayload{
		Program:       s.Prog,
		Build:         s.Build,
		UptimeSeconds: int64(time.Since(s.Started).Seconds()),
	}
	if s.Store != nil {
		err := s.Store.Transact(func(tx *store.Tx) error {
			var err error
			p.TrustHandled, p.TrustActual, p.VSTPHandled, p.TDHandled, err = tx.GetStatus()
			return err
		})
		if err != nil {
			s.Logger.Printf("MINOR status read failed: %v", err)
			http.Error(w, "status unavailable", http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p)
}
