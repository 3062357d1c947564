package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"
)

// readinessReport maps each checker name to "up" or "down: <reason>".
type readinessReport struct {
	Status map[string]string `json:"status"`
}

// liveness only proves the process serves HTTP; it never touches dependencies.
func (s *Server) liveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness runs every checker concurrently under the configured timeout and
// answers 503 if any of them failed.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		report = readinessReport{Status: make(map[string]string, len(s.checkers))}
		down   bool
	)

	var g errgroup.Group
	for _, c := range s.checkers {
		g.Go(func() error {
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Warn only: the orchestrator retries the probe.
				s.logger.Warn("health probe failed",
					slog.String("component", c.Name()),
					slog.String("error", err.Error()),
				)
				report.Status[c.Name()] = fmt.Sprintf("down: %v", err)
				down = true
				return nil
			}
			report.Status[c.Name()] = "up"
			return nil
		})
	}
	_ = g.Wait()

	if down {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, report)
}
