package fazenda

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coopagro/gestao/internal/http/middleware"
	"github.com/coopagro/gestao/internal/http/render"
	"github.com/coopagro/gestao/internal/papel"
	"github.com/coopagro/gestao/internal/util"
)

// Handler expõe as rotas de fazendas.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes expõe a listagem usada pelo formulário de cadastro.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/fazendas", h.handleList)
}

// RegisterRoutes registra as rotas autenticadas; o GET da coleção é público.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireCapacidade(papel.VerFazendas)).Get("/fazendas/{id}", h.handleGet)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireCapacidade(papel.GerirFazendas))
		r.Post("/fazendas", h.handleCreate)
		r.Put("/fazendas/{id}", h.handleUpdate)
		r.Delete("/fazendas/{id}", h.handleDelete)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	fazendas, err := h.service.Listar(r.Context())
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, fazendas)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := util.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		render.Validation(w, err)
		return
	}
	f, err := h.service.Obter(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input CriarInput
	if !render.DecodeJSON(w, r, &input) {
		return
	}
	f, err := h.service.Criar(r.Context(), input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusCreated, f)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := util.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		render.Validation(w, err)
		return
	}
	var input AtualizarInput
	if !render.DecodeJSON(w, r, &input) {
		return
	}
	f, err := h.service.Atualizar(r.Context(), id, input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := util.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		render.Validation(w, err)
		return
	}
	if err := h.service.Remover(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case render.Validation(w, err):
	case errors.Is(err, ErrNotFound):
		render.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrCNPJEmUso):
		render.WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	default:
		render.Internal(w, r, err)
	}
}
