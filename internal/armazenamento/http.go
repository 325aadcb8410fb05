package armazenamento

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

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
	r.Route("/armazenamento/locais", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCapacidade(papel.VerLocais))
			r.Get("/", h.handleList)
			r.Get("/em-uso", h.handleEmUso)
			r.Get("/{id}", h.handleGet)
			r.Get("/{id}/ocupacoes", h.handleOcupacoes)
		})
		r.With(middleware.RequireCapacidade(papel.Colher)).Get("/compativeis", h.handleCompativeis)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCapacidade(papel.GerirLocais))
			r.Post("/", h.handleCreate)
			r.Put("/{id}", h.handleUpdate)
			r.Delete("/{id}", h.handleDelete)
		})
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var fazendaID *uuid.UUID
	if raw := r.URL.Query().Get("fazendaId"); raw != "" {
		id, err := util.ParseID(raw, "fazendaId")
		if err != nil {
			render.Validation(w, err)
			return
		}
		fazendaID = &id
	}
	locais, err := h.service.ListarLocais(r.Context(), fazendaID)
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, locais)
}

// handleEmUso usa a fazenda da sessão; a cooperativa informa a fazenda por query.
func (h *Handler) handleEmUso(w http.ResponseWriter, r *http.Request) {
	u, _ := sessao.FromContext(r.Context()).Usuario()
	fazendaID := u.FazendaID
	if raw := r.URL.Query().Get("fazendaId"); raw != "" && u.Papel == papel.Cooperativa {
		id, err := util.ParseID(raw, "fazendaId")
		if err != nil {
			render.Validation(w, err)
			return
		}
		fazendaID = &id
	}
	if fazendaID == nil {
		render.Validation(w, &util.ValidationError{Campo: "fazendaId", Mensagem: "fazenda obrigatória"})
		return
	}
	locais, err := h.service.ListarEmUso(r.Context(), *fazendaID)
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, locais)
}

func (h *Handler) handleCompativeis(w http.ResponseWriter, r *http.Request) {
	u, _ := sessao.FromContext(r.Context()).Usuario()
	if u.FazendaID == nil {
		render.WriteError(w, http.StatusForbidden, "FORBIDDEN", "perfil sem fazenda vinculada", nil)
		return
	}
	q := r.URL.Query()
	locais, err := h.service.ListarCompativeis(r.Context(), FiltroCompativeis{
		Tipo:        insumo.UnidadeMedida(q.Get("tipo")),
		FazendaID:   *u.FazendaID,
		ProdutoNome: q.Get("produtoNome"),
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, locais)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := util.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		render.Validation(w, err)
		return
	}
	l, err := h.service.ObterLocal(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) handleOcupacoes(w http.ResponseWriter, r *http.Request) {
	id, err := util.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		render.Validation(w, err)
		return
	}
	ocupacoes, err := h.service.Ocupacoes(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, ocupacoes)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input RegistrarLocalInput
	if !render.DecodeJSON(w, r, &input) {
		return
	}
	l, err := h.service.RegistrarLocal(r.Context(), input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusCreated, l)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := util.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		render.Validation(w, err)
		return
	}
	var input AtualizarLocalInput
	if !render.DecodeJSON(w, r, &input) {
		return
	}
	l, err := h.service.AtualizarLocal(r.Context(), id, input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := util.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		render.Validation(w, err)
		return
	}
	if err := h.service.RemoverLocal(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WriteError traduz os erros de capacidade para o envelope HTTP; os fluxos
// de colheita e venda reutilizam o mesmo mapeamento.
func WriteError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, ErrLocalNaoEncontrado), errors.Is(err, ErrOcupacaoNaoEncontrada):
		render.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrCapacidadeExcedida):
		render.WriteError(w, http.StatusUnprocessableEntity, "CAPACITY", err.Error(), nil)
	case errors.Is(err, ErrLocalOcupado), errors.Is(err, ErrTipoIncompativel):
		render.WriteError(w, http.StatusUnprocessableEntity, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrCapacidadeAbaixoDoUso), errors.Is(err, ErrLocalEmUso):
		render.WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	default:
		return false
	}
	return true
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case render.Validation(w, err):
	case WriteError(w, err):
	default:
		render.Internal(w, r, err)
	}
}
