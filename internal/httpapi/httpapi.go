// Package httpapi is the ops sidecar for long reduction runs: liveness,
// prometheus metrics, and an engine verification endpoint. It is read-only;
// recipe execution is never driven over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Starlink/ORAC-DR-sub007/internal/logging"
	"github.com/Starlink/ORAC-DR-sub007/internal/metrics"
)

// EngineVerifier is the slice of the engine registry the sidecar needs.
type EngineVerifier interface {
	Names() []string
	VerifyAll(ctx context.Context) (alive, dead []string)
}

type enginesResponse struct {
	Configured []string `json:"configured"`
	Alive      []string `json:"alive"`
	Dead       []string `json:"dead"`
}

// NewHandler builds the sidecar routes: GET /healthz, GET /metrics and
// GET /engines, which runs the bulk liveness verification and reports the
// responsive/unresponsive partition.
func NewHandler(reg EngineVerifier, met *metrics.Set, log *slog.Logger) http.Handler {
	if log == nil {
		log = logging.NewNop()
	}
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Handle("/metrics", promhttp.HandlerFor(met.Registry(), promhttp.HandlerOpts{}))

	r.Get("/engines", func(w http.ResponseWriter, req *http.Request) {
		alive, dead := reg.VerifyAll(req.Context())
		resp := enginesResponse{
			Configured: emptyNotNil(reg.Names()),
			Alive:      emptyNotNil(alive),
			Dead:       emptyNotNil(dead),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error("encode engines response", "err", err)
		}
	})

	return r
}

// Serve runs the handler until ctx is canceled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	if log == nil {
		log = logging.NewNop()
	}
	srv := &http.Server{Addr: addr, Handler: h}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.ListenAndServe()
	}()
	log.Info("status server listening", "addr", addr)

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop status server gracefully: %w", err)
		}
		return nil
	}
}

func emptyNotNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
