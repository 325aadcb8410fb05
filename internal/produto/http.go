package produto

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coopagro/gestao/internal/http/middleware"
	"github.com/coopagro/gestao/internal/http/render"
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
	r.Route("/produtos", func(r chi.Router) {
		r.Use(middleware.RequireCapacidade(papel.GerirProdutos))
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var (
		produtos []Produto
		err      error
	)
	if raw := r.URL.Query().Get("insumoId"); raw != "" {
		id, perr := util.ParseID(raw, "insumoId")
		if perr != nil {
			render.Validation(w, perr)
			return
		}
		produtos, err = h.service.ListarPorInsumo(r.Context(), id)
	} else {
		produtos, err = h.service.Listar(r.Context())
	}
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, produtos)
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
	render.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input CriarInput
	if !render.DecodeJSON(w, r, &input) {
		return
	}
	p, err := h.service.Criar(r.Context(), sessao.FromContext(r.Context()), input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusCreated, p)
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
	p, err := h.service.Atualizar(r.Context(), sessao.FromContext(r.Context()), id, input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := util.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		render.Validation(w, err)
		return
	}
	if err := h.service.Remover(r.Context(), sessao.FromContext(r.Context()), id); err != nil {
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
	case errors.Is(err, ErrNaoProdutor), errors.Is(err, sessao.ErrPerfilIncompleto):
		render.WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	default:
		render.Internal(w, r, err)
	}
}
