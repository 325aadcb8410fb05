package insumo

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

// Handler expõe rotas de insumos e compras.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registra as rotas autenticadas.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/insumos", func(r chi.Router) {
		r.With(middleware.RequireCapacidade(papel.VerInsumos)).Get("/", h.handleListInsumos)
		r.With(middleware.RequireCapacidade(papel.VerInsumos)).Get("/{id}", h.handleGetInsumo)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCapacidade(papel.GerirInsumos))
			r.Post("/", h.handleCreateInsumo)
			r.Put("/{id}", h.handleUpdateInsumo)
			r.Delete("/{id}", h.handleDeleteInsumo)
		})
	})

	r.Route("/compras", func(r chi.Router) {
		r.With(middleware.RequireCapacidade(papel.VerCompras)).Get("/", h.handleListCompras)
		r.With(middleware.RequireCapacidade(papel.VerCompras)).Get("/{id}", h.handleGetCompra)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCapacidade(papel.RegistrarCompra))
			r.Post("/", h.handleCreateCompra)
			r.Patch("/{id}/status", h.handleUpdateStatus)
		})
	})
}

func (h *Handler) handleListInsumos(w http.ResponseWriter, r *http.Request) {
	insumos, err := h.service.ListarInsumos(r.Context())
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, insumos)
}

func (h *Handler) handleGetInsumo(w http.ResponseWriter, r *http.Request) {
	id, err := util.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		render.Validation(w, err)
		return
	}
	i, err := h.service.ObterInsumo(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, i)
}

func (h *Handler) handleCreateInsumo(w http.ResponseWriter, r *http.Request) {
	var input CriarInsumoInput
	if !render.DecodeJSON(w, r, &input) {
		return
	}
	i, err := h.service.CriarInsumo(r.Context(), input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusCreated, i)
}

func (h *Handler) handleUpdateInsumo(w http.ResponseWriter, r *http.Request) {
	id, err := util.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		render.Validation(w, err)
		return
	}
	var input AtualizarInsumoInput
	if !render.DecodeJSON(w, r, &input) {
		return
	}
	i, err := h.service.AtualizarInsumo(r.Context(), id, input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, i)
}

func (h *Handler) handleDeleteInsumo(w http.ResponseWriter, r *http.Request) {
	id, err := util.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		render.Validation(w, err)
		return
	}
	if err := h.service.RemoverInsumo(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListCompras: a cooperativa pode filtrar livremente; o cooperado só vê a própria fazenda.
func (h *Handler) handleListCompras(w http.ResponseWriter, r *http.Request) {
	u, _ := sessao.FromContext(r.Context()).Usuario()

	var (
		compras []Compra
		err     error
	)
	switch {
	case u.Papel == papel.Cooperado && u.FazendaID != nil:
		compras, err = h.service.ListarPorFazenda(r.Context(), *u.FazendaID)
	case u.Papel == papel.Cooperado:
		compras, err = h.service.ListarPorCooperado(r.Context(), u.UID)
	case r.URL.Query().Get("fazendaId") != "":
		id, perr := util.ParseID(r.URL.Query().Get("fazendaId"), "fazendaId")
		if perr != nil {
			render.Validation(w, perr)
			return
		}
		compras, err = h.service.ListarPorFazenda(r.Context(), id)
	case r.URL.Query().Get("cooperadoUid") != "":
		id, perr := util.ParseID(r.URL.Query().Get("cooperadoUid"), "cooperadoUid")
		if perr != nil {
			render.Validation(w, perr)
			return
		}
		compras, err = h.service.ListarPorCooperado(r.Context(), id)
	default:
		compras, err = h.service.ListarCompras(r.Context())
	}
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, compras)
}

func (h *Handler) handleGetCompra(w http.ResponseWriter, r *http.Request) {
	id, err := util.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		render.Validation(w, err)
		return
	}
	c, err := h.service.ObterCompra(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleCreateCompra(w http.ResponseWriter, r *http.Request) {
	var input RegistrarCompraInput
	if !render.DecodeJSON(w, r, &input) {
		return
	}
	c, err := h.service.RegistrarCompra(r.Context(), input)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := util.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		render.Validation(w, err)
		return
	}
	var body struct {
		Status StatusCompra `json:"status"`
	}
	if !render.DecodeJSON(w, r, &body) {
		return
	}
	c, err := h.service.AtualizarStatus(r.Context(), id, body.Status)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, c)
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case render.Validation(w, err):
	case IsNotFound(err):
		render.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrVersaoDesatualizada):
		render.WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	default:
		render.Internal(w, r, err)
	}
}
