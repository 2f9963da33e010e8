package ledger

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

// Handler wires HTTP endpoints for ledger transactions.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers transaction routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type splitRequest struct {
	ObligationID            string  `json:"obligationId" validate:"required"`
	Kind                    string  `json:"kind" validate:"required,oneof=budget outflow inflow"`
	Amount                  float64 `json:"amount" validate:"required,gt=0"`
	PaymentType             string  `json:"paymentType" validate:"omitempty,oneof=regular catch_up advance extra_principal"`
	TargetMonthlyPeriodID   string  `json:"targetMonthlyPeriodId"`
	TargetBiMonthlyPeriodID string  `json:"targetBiMonthlyPeriodId"`
	TargetWeeklyPeriodID    string  `json:"targetWeeklyPeriodId"`
}

type transactionRequest struct {
	Type        string         `json:"type" validate:"required,oneof=expense income"`
	Status      string         `json:"status" validate:"omitempty,oneof=PENDING APPROVED REJECTED"`
	Amount      float64        `json:"amount" validate:"required,gt=0"`
	Date        string         `json:"date" validate:"required,datetime=2006-01-02"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Splits      []splitRequest `json:"splits" validate:"dive"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*Transaction, bool) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "caller identity missing")
		return nil, false
	}
	var req transactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return nil, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return nil, false
	}
	date, _ := time.Parse("2006-01-02", req.Date)

	tx := &Transaction{
		OwnerID:     caller.OwnerID,
		Type:        TransactionType(req.Type),
		Status:      TransactionStatus(req.Status),
		Amount:      req.Amount,
		Date:        date,
		Description: req.Description,
		Category:    req.Category,
	}
	for _, s := range req.Splits {
		paymentType := period.PaymentType(s.PaymentType)
		if paymentType == "" {
			paymentType = period.PaymentRegular
		}
		tx.Splits = append(tx.Splits, Split{
			ObligationID:            s.ObligationID,
			Kind:                    period.Kind(s.Kind),
			Amount:                  s.Amount,
			PaymentType:             paymentType,
			TargetMonthlyPeriodID:   s.TargetMonthlyPeriodID,
			TargetBiMonthlyPeriodID: s.TargetBiMonthlyPeriodID,
			TargetWeeklyPeriodID:    s.TargetWeeklyPeriodID,
		})
	}
	return tx, true
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tx, ok := h.decode(w, r)
	if !ok {
		return
	}
	created, err := h.service.Create(r.Context(), tx)
	if err != nil {
		h.logger.Error("create transaction", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "caller identity missing")
		return
	}
	tx, err := h.service.Get(r.Context(), caller.OwnerID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tx)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	tx, ok := h.decode(w, r)
	if !ok {
		return
	}
	tx.ID = chi.URLParam(r, "id")
	updated, err := h.service.Update(r.Context(), tx)
	if err != nil {
		h.logger.Error("update transaction", slog.String("id", tx.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "caller identity missing")
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), caller.OwnerID, id); err != nil {
		h.logger.Error("delete transaction", slog.String("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}
