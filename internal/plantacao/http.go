package plantacao

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coopagro/gestao/internal/http/middleware"
	"github.com/coopagro/gestao/internal/http/render"
	"github.com/coopagro/gestao/internal/insumo"
	"github.com/coopagro/gestao/internal/papel"
	"github.com/coopagro/gestao/internal/sessao"
	"github.com/coopagro/gestao/internal/util"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/plantacoes", func(r chi.Router) {
		r.Use(middleware.RequireCapacidade(papel.Plantar))
		r.Get("/", h.handleList)
		r.Post("/", h.handlePlantar)
		r.Get("/{id}", h.handleGet)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	u, _ := sessao.FromContext(r.Context()).Usuario()
	if u.FazendaID == nil {
		render.WriteJSON(w, http.StatusOK, []Plantacao{})
		return
	}
	plantacoes, err := h.service.ListarPorFazenda(r.Context(), *u.FazendaID)
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, plantacoes)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := util.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		render.Validation(w, err)
		return
	}
	p, err := h.service.Obter(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	u, _ := sessao.FromContext(r.Context()).Usuario()
	if u.FazendaID == nil || *u.FazendaID != p.FazendaID {
		handleDomainError(w, r, ErrOutraFazenda)
		return
	}
	render.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handlePlantar(w http.ResponseWriter, r *http.Request) {
	var input PlantarInput
	if !render.DecodeJSON(w, r, &input) {
		return
	}
	p, err := h.service.Plantar(r.Context(), sessao.FromContext(r.Context()), input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusCreated, p)
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case render.Validation(w, err):
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrItemNaoEncontrado), insumo.IsNotFound(err):
		render.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrQuantidadeExcedida):
		render.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
	case errors.Is(err, ErrConflito), errors.Is(err, ErrJaColhida):
		render.WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrOutraFazenda), errors.Is(err, sessao.ErrPerfilIncompleto):
		render.WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	default:
		render.Internal(w, r, err)
	}
}
