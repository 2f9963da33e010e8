package summary

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hearthledger/hearthledger/internal/calendar"
	"github.com/hearthledger/hearthledger/internal/platform/httpx"
	"github.com/hearthledger/hearthledger/internal/shared"
)

// Handler exposes the two callable summary operations.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers summary routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{periodType}/{sourcePeriodID}", h.get)
	r.Post("/{periodType}/{sourcePeriodID}/recalculate", h.recalculate)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "caller identity missing")
		return
	}
	periodType := calendar.PeriodType(chi.URLParam(r, "periodType"))
	sourcePeriodID := chi.URLParam(r, "sourcePeriodID")
	includeEntries := queryBool(r, "includeEntries", true)

	doc, err := h.service.Get(r.Context(), caller.OwnerID, periodType, sourcePeriodID, includeEntries)
	if err != nil {
		h.logger.Error("get period summary",
			slog.String("source_period_id", sourcePeriodID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "caller identity missing")
		return
	}
	periodType := calendar.PeriodType(chi.URLParam(r, "periodType"))
	sourcePeriodID := chi.URLParam(r, "sourcePeriodID")
	includeEntries := queryBool(r, "includeEntries", true)

	doc, err := h.service.Recalculate(r.Context(), caller.OwnerID, periodType, sourcePeriodID, includeEntries)
	if err != nil {
		h.logger.Error("recalculate period summary",
			slog.String("source_period_id", sourcePeriodID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func queryBool(r *http.Request, name string, fallback bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
