package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"taxregistry/internal/taxpayer/models"
	"taxregistry/pkg/platform/httputil"
	request "taxregistry/pkg/platform/middleware/request"
)

// Service is the registry as seen by HTTP. Returns domain objects.
type Service interface {
	CreateTaxPayer(ctx context.Context, firstName, lastName, address string) (models.TID, error)
	UpdateTaxPayer(ctx context.Context, tid models.TID, firstName, lastName, address string) error
	DeleteTaxPayer(ctx context.Context, tid models.TID) error
	AddCapitalGain(ctx context.Context, tid models.TID, date time.Time, amount float64) error
	GetAllTaxPayers(ctx context.Context) ([]*models.TaxPayer, error)
	SearchTaxPayerByTID(ctx context.Context, tid models.TID) ([]*models.TaxPayer, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/taxpayers", h.HandleCreate)
	r.Get("/taxpayers", h.HandleGetAll)
	r.Get("/taxpayers/search", h.HandleSearch)
	r.Put("/taxpayers/{tid}", h.HandleUpdate)
	r.Delete("/taxpayers/{tid}", h.HandleDelete)
	r.Post("/taxpayers/{tid}/capital-gains", h.HandleAddCapitalGain)
}

// HandleCreate registers a taxpayer and answers 201 with its tid.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(r)

	req, ok := httputil.DecodeAndPrepare[TaxPayerRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tid, err := h.service.CreateTaxPayer(ctx, req.FirstName, req.LastName, req.Address)
	if err != nil {
		h.logger.ErrorContext(ctx, "create taxpayer failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, &CreateTaxPayerResponse{TID: tid})
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(r)
	tid, err := models.ParseTID(chi.URLParam(r, "tid"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[TaxPayerRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.UpdateTaxPayer(ctx, tid, req.FirstName, req.LastName, req.Address); err != nil {
		h.logger.ErrorContext(ctx, "update taxpayer failed", "error", err, "request_id", requestID, "tid", tid)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(r)
	tid, err := models.ParseTID(chi.URLParam(r, "tid"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.DeleteTaxPayer(ctx, tid); err != nil {
		h.logger.ErrorContext(ctx, "delete taxpayer failed", "error", err, "request_id", requestID, "tid", tid)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *Handler) HandleAddCapitalGain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(r)
	tid, err := models.ParseTID(chi.URLParam(r, "tid"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[CapitalGainRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.AddCapitalGain(ctx, tid, *req.Date, *req.Amount); err != nil {
		h.logger.ErrorContext(ctx, "add capital gain failed", "error", err, "request_id", requestID, "tid", tid)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	all, err := h.service.GetAllTaxPayers(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list taxpayers failed", "error", err, "request_id", request.GetRequestID(r))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTaxPayerList(all))
}

// HandleSearch answers 200 with zero or one taxpayer for ?tid=N.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tid, err := models.ParseTID(r.URL.Query().Get("tid"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	found, err := h.service.SearchTaxPayerByTID(ctx, tid)
	if err != nil {
		h.logger.ErrorContext(ctx, "search taxpayer failed", "error", err, "request_id", request.GetRequestID(r), "tid", tid)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTaxPayerList(found))
}
