// Package storefrontapi implements the REST API the storefront theme talks
// to: the derived campaign state, the gift selection flow and out-of-band
// cart mutation notices.
package storefrontapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/rafaeljc/gefjon/internal/giftstate"
	"github.com/rafaeljc/gefjon/internal/selection"
	"github.com/rafaeljc/gefjon/internal/trigger"
	"github.com/rafaeljc/gefjon/internal/validation"
)

// StateReader serves the latest pass report. *giftstate.Publisher implements it.
type StateReader interface {
	Latest() (giftstate.Report, bool)
}

// Selector is the selection flow as seen by shoppers. *selection.Coordinator implements it.
type Selector interface {
	Pending() (selection.Prompt, selection.Phase, bool)
	Confirm(ctx context.Context, campaignID string, variantIDs []int64) error
	Cancel(campaignID string) error
}

// EventPublisher receives cart mutation notices. *trigger.Bus implements it.
type EventPublisher interface {
	Publish(e trigger.CartMutated)
}

// API holds the dependencies and the router.
type API struct {
	// Router is the Chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	logger    *slog.Logger
	state     StateReader
	selection Selector
	events    EventPublisher
	validate  *validator.Validate
}

// NewAPI creates the API and registers its routes.
func NewAPI(logger *slog.Logger, state StateReader, sel Selector, events EventPublisher) *API {
	if logger == nil {
		logger = slog.Default()
	}
	validation.AssertDependency(state, "state reader")
	validation.AssertDependency(sel, "selection coordinator")
	validation.AssertDependency(events, "event publisher")

	api := &API{
		Router:    chi.NewRouter(),
		logger:    logger,
		state:     state,
		selection: sel,
		events:    events,
		validate:  validator.New(),
	}

	api.configureRoutes()
	return api
}

// configureRoutes registers the global middleware stack and API endpoints.
func (a *API) configureRoutes() {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(a.RequestLogger)
	a.Router.Use(Metrics)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Get("/health", a.handleHealthCheck)

	a.Router.Route("/api/v1", func(r chi.Router) {
		r.Route("/state", func(r chi.Router) {
			r.Get("/", a.handleGetState)
			r.Get("/{campaignID}", a.handleGetCampaignState)
		})

		r.Route("/selection", func(r chi.Router) {
			r.Get("/", a.handleGetSelection)
			r.Post("/{campaignID}/confirm", a.handleConfirmSelection)
			r.Post("/{campaignID}/cancel", a.handleCancelSelection)
		})

		r.Post("/cart/events", a.handleCartEvent)
	})
}

func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}
