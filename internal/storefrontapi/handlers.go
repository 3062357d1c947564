package storefrontapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/rafaeljc/gefjon/internal/logger"
	"github.com/rafaeljc/gefjon/internal/selection"
	"github.com/rafaeljc/gefjon/internal/trigger"
)

// handleGetState returns the report of the last completed pass.
func (a *API) handleGetState(w http.ResponseWriter, r *http.Request) {
	report, ok := a.state.Latest()
	if !ok {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_NOT_READY",
			Message: "No reconciliation pass has completed yet",
		})
		return
	}
	render.JSON(w, r, report)
}

// handleGetCampaignState returns one campaign of the last report.
func (a *API) handleGetCampaignState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "campaignID")

	report, ok := a.state.Latest()
	if !ok {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_NOT_READY",
			Message: "No reconciliation pass has completed yet",
		})
		return
	}

	st, ok := report.Campaigns[id]
	if !ok {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_NOT_FOUND",
			Message: "Campaign '" + id + "' is not active",
		})
		return
	}
	render.JSON(w, r, st)
}

// handleGetSelection returns the open prompt, if any.
func (a *API) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	prompt, phase, ok := a.selection.Pending()
	resp := SelectionResponse{Phase: phase}
	if ok {
		resp.Prompt = &prompt
	}
	render.JSON(w, r, resp)
}

// handleConfirmSelection processes POST /api/v1/selection/{campaignID}/confirm.
//
// Status codes:
//   - 200 once the selected gifts were added.
//   - 400 for a malformed body or a gift the prompt does not offer.
//   - 404 when no selection is open for the campaign.
//   - 422 when more gifts are selected than allowed; the message is shown verbatim.
//   - 502 when the cart service rejected the additions.
func (a *API) handleConfirmSelection(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	id := chi.URLParam(r, "campaignID")

	var req ConfirmSelectionRequest
	if !a.decode(w, r, &req) {
		return
	}

	err := a.selection.Confirm(r.Context(), id, req.VariantIDs)
	switch {
	case err == nil:
		render.JSON(w, r, StatusResponse{Status: "confirmed"})

	case errors.Is(err, selection.ErrSelectionLimit):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, ErrorResponse{Code: "ERR_SELECTION_LIMIT", Message: err.Error()})

	case errors.Is(err, selection.ErrNoPrompt):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{Code: "ERR_NO_SELECTION", Message: err.Error()})

	case errors.Is(err, selection.ErrUnknownGift), errors.Is(err, selection.ErrEmptySelection):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Code: "ERR_INVALID_INPUT", Message: err.Error()})

	default:
		log.Error("failed to confirm gift selection",
			slog.String("campaign_id", id),
			slog.String("error", err.Error()),
		)
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, ErrorResponse{Code: "ERR_CART_UNAVAILABLE", Message: "The cart could not be updated"})
	}
}

// handleCancelSelection closes the prompt without touching the cart.
func (a *API) handleCancelSelection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "campaignID")

	if err := a.selection.Cancel(id); err != nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{Code: "ERR_NO_SELECTION", Message: err.Error()})
		return
	}
	render.JSON(w, r, StatusResponse{Status: "cancelled"})
}

// handleCartEvent publishes a storefront mutation notice; the scheduler
// debounces it like any other.
func (a *API) handleCartEvent(w http.ResponseWriter, r *http.Request) {
	var req CartEventRequest
	if !a.decode(w, r, &req) {
		return
	}

	a.events.Publish(trigger.CartMutated{Source: trigger.SourceStorefront, Action: req.Action})

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, StatusResponse{Status: "accepted"})
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		logger.FromContext(r.Context()).Warn("invalid json payload", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_JSON",
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return false
	}

	if err := a.validate.Struct(dst); err != nil {
		resp := ErrorResponse{Code: "ERR_INVALID_INPUT", Message: "Request validation failed"}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				resp.Details = append(resp.Details, ErrorDetail{Field: fe.Field(), Issue: fe.Tag()})
			}
		}
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp)
		return false
	}
	return true
}
