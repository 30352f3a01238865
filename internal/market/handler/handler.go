package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"market/internal/market/models"
	"market/pkg/platform/httputil"
)

// Service defines the registration operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, req *models.RegistrationRequest) (*models.RegistrationResponse, error)
	ListMine(ctx context.Context) ([]*models.MarketUser, error)
	ListLegalForms(ctx context.Context) ([]*models.LegalForm, error)
}

// Handler serves the market registration endpoints.
type Handler struct {
	logger       *slog.Logger
	service      Service
	authenticate func(http.Handler) http.Handler
}

// New builds a Handler. authenticate guards every endpoint that needs a caller.
func New(service Service, logger *slog.Logger, authenticate func(http.Handler) http.Handler) *Handler {
	if authenticate == nil {
		authenticate = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{logger: logger, service: service, authenticate: authenticate}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/legal-forms", h.handleListLegalForms)
	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)
		r.Post("/v1/register", h.handleRegister)
		r.Get("/v1/market-users/me", h.handleListMine)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.RegistrationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid registration request", "error", err)
		httputil.WriteError(w, err)
		return
	}

	resp, err := h.service.Register(ctx, &req)
	if err != nil {
		h.logFailure(ctx, "registration failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type marketUsersResponse struct {
	MarketUsers []models.MarketUserResponse `json:"market_users"`
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.service.ListMine(ctx)
	if err != nil {
		h.logFailure(ctx, "failed to list market users", err)
		httputil.WriteError(w, err)
		return
	}
	resp := marketUsersResponse{MarketUsers: make([]models.MarketUserResponse, 0, len(list))}
	for _, m := range list {
		resp.MarketUsers = append(resp.MarketUsers, models.ToMarketUserResponse(m))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type legalFormsResponse struct {
	LegalForms []*models.LegalForm `json:"legal_forms"`
}

func (h *Handler) handleListLegalForms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	forms, err := h.service.ListLegalForms(ctx)
	if err != nil {
		h.logFailure(ctx, "failed to list legal forms", err)
		httputil.WriteError(w, err)
		return
	}
	if forms == nil {
		forms = []*models.LegalForm{}
	}
	httputil.WriteJSON(w, http.StatusOK, legalFormsResponse{LegalForms: forms})
}

// logFailure logs caller mistakes at WARN and everything else at ERROR.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if httputil.IsClientError(err) {
		h.logger.WarnContext(ctx, msg, "error", err)
		return
	}
	h.logger.ErrorContext(ctx, msg, "error", err)
}
