package colheita

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coopagro/gestao/internal/armazenamento"
	"github.com/coopagro/gestao/internal/http/middleware"
	"github.com/coopagro/gestao/internal/http/render"
	"github.com/coopagro/gestao/internal/insumo"
	"github.com/coopagro/gestao/internal/papel"
	"github.com/coopagro/gestao/internal/plantacao"
	"github.com/coopagro/gestao/internal/sessao"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/colheitas", func(r chi.Router) {
		r.Use(middleware.RequireCapacidade(papel.Colher))
		r.Get("/", h.handleList)
		r.Post("/", h.handleColher)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	u, _ := sessao.FromContext(r.Context()).Usuario()
	if u.FazendaID == nil {
		render.WriteJSON(w, http.StatusOK, []ProdutoColhido{})
		return
	}
	colhidos, err := h.service.ListarPorFazenda(r.Context(), *u.FazendaID)
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, colhidos)
}

func (h *Handler) handleColher(w http.ResponseWriter, r *http.Request) {
	var input ColherInput
	if !render.DecodeJSON(w, r, &input) {
		return
	}
	colhido, err := h.service.Colher(r.Context(), sessao.FromContext(r.Context()), input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusCreated, colhido)
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case render.Validation(w, err):
	case armazenamento.WriteError(w, err):
	case errors.Is(err, plantacao.ErrNotFound), insumo.IsNotFound(err):
		render.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, plantacao.ErrJaColhida), errors.Is(err, ErrJaRegistrada):
		render.WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrOutraFazenda), errors.Is(err, ErrSemFazenda), errors.Is(err, sessao.ErrPerfilIncompleto):
		render.WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	default:
		render.Internal(w, r, err)
	}
}
