package obligation

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hearthledger/hearthledger/internal/period"
	"github.com/hearthledger/hearthledger/internal/platform/httpx"
	"github.com/hearthledger/hearthledger/internal/shared"
)

// Handler wires HTTP endpoints for obligations.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers obligation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.deactivate)
}

type createRequest struct {
	Kind       string   `json:"kind" validate:"required,oneof=budget outflow inflow"`
	Name       string   `json:"name" validate:"required"`
	Amount     float64  `json:"amount" validate:"required,gt=0"`
	Frequency  string   `json:"frequency" validate:"required,oneof=WEEKLY BIWEEKLY SEMI_MONTHLY MONTHLY ANNUALLY"`
	FirstDate  string   `json:"firstDate" validate:"required,datetime=2006-01-02"`
	EndDate    string   `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Categories []string `json:"categories"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "caller identity missing")
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	firstDate, _ := time.Parse("2006-01-02", req.FirstDate)
	ob := &Obligation{
		OwnerID:    caller.OwnerID,
		Kind:       period.Kind(req.Kind),
		Name:       req.Name,
		Amount:     req.Amount,
		Frequency:  period.Frequency(req.Frequency),
		FirstDate:  firstDate,
		Categories: req.Categories,
	}
	if req.EndDate != "" {
		end, _ := time.Parse("2006-01-02", req.EndDate)
		ob.FixedEndDate = &end
	}
	created, err := h.service.Create(r.Context(), ob)
	if err != nil {
		h.logger.Error("create obligation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "caller identity missing")
		return
	}
	obs, err := h.service.List(r.Context(), caller.OwnerID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, obs)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "caller identity missing")
		return
	}
	ob, err := h.service.Get(r.Context(), caller.OwnerID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ob)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "caller identity missing")
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.service.Deactivate(r.Context(), caller.OwnerID, id); err != nil {
		h.logger.Error("deactivate obligation", slog.String("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}
