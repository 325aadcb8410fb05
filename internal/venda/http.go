package venda

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coopagro/gestao/internal/armazenamento"
	"github.com/coopagro/gestao/internal/http/middleware"
	"github.com/coopagro/gestao/internal/http/render"
	"github.com/coopagro/gestao/internal/papel"
	"github.com/coopagro/gestao/internal/sessao"
	"github.com/coopagro/gestao/internal/storage"
	"github.com/coopagro/gestao/internal/util"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/vendas", func(r chi.Router) {
		r.With(middleware.RequireCapacidade(papel.Vender)).Post("/", h.handleRegistrar)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCapacidade(papel.VerVendas))
			r.Get("/", h.handleList)
			r.Get("/resumo", h.handleResumo)
			r.Post("/relatorio", h.handleExportar)
		})
	})
}

func (h *Handler) handleRegistrar(w http.ResponseWriter, r *http.Request) {
	var input RegistrarInput
	if !render.DecodeJSON(w, r, &input) {
		return
	}
	if chave := strings.TrimSpace(r.Header.Get("Idempotency-Key")); chave != "" {
		input.ChaveIdempotencia = chave
	}
	v, err := h.service.RegistrarVenda(r.Context(), sessao.FromContext(r.Context()), input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	fazendaID, ok := fazendaAlvo(w, r)
	if !ok {
		return
	}
	vendas, err := h.service.ListarPorFazenda(r.Context(), fazendaID)
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	if vendas == nil {
		vendas = []Venda{}
	}
	render.WriteJSON(w, http.StatusOK, vendas)
}

func (h *Handler) handleResumo(w http.ResponseWriter, r *http.Request) {
	fazendaID, ok := fazendaAlvo(w, r)
	if !ok {
		return
	}
	res, err := h.service.Resumo(r.Context(), fazendaID)
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleExportar(w http.ResponseWriter, r *http.Request) {
	fazendaID, ok := fazendaAlvo(w, r)
	if !ok {
		return
	}
	rel, err := h.service.ExportarRelatorio(r.Context(), fazendaID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusCreated, rel)
}

// fazendaAlvo usa a fazenda do cooperado; a cooperativa informa ?fazendaId=.
func fazendaAlvo(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	u, _ := sessao.FromContext(r.Context()).Usuario()
	if u.Papel == papel.Cooperado {
		if u.FazendaID == nil {
			render.WriteError(w, http.StatusForbidden, "FORBIDDEN", ErrSemFazenda.Error(), nil)
			return uuid.Nil, false
		}
		return *u.FazendaID, true
	}
	id, err := util.ParseID(r.URL.Query().Get("fazendaId"), "fazendaId")
	if err != nil {
		render.Validation(w, err)
		return uuid.Nil, false
	}
	return id, true
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case render.Validation(w, err):
	case armazenamento.WriteError(w, err):
	case errors.Is(err, ErrSemVendas):
		render.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrChaveEmUso):
		render.WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, storage.ErrNaoConfigurado):
		render.WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error(), nil)
	case errors.Is(err, ErrSemFazenda), errors.Is(err, sessao.ErrPerfilIncompleto):
		render.WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	default:
		render.Internal(w, r, err)
	}
}
