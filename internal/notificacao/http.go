package notificacao

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/coopagro/gestao/internal/http/middleware"
	"github.com/coopagro/gestao/internal/http/render"
	"github.com/coopagro/gestao/internal/papel"
	"github.com/coopagro/gestao/internal/sessao"
	"github.com/coopagro/gestao/internal/util"
)

const heartbeat = 25 * time.Second

type Handler struct {
	service   *Service
	assinante Assinante
}

// NewHandler aceita assinante nulo; o stream passa a responder 503.
func NewHandler(service *Service, assinante Assinante) *Handler {
	return &Handler{service: service, assinante: assinante}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notificacoes", func(r chi.Router) {
		r.Use(middleware.RequireCapacidade(papel.ReceberNotificacoes))
		r.Get("/", h.handleList)
		r.Get("/nao-lidas", h.handleNaoLidas)
		r.Get("/stream", h.handleStream)
		r.Patch("/lidas", h.handleMarcarTodas)
		r.Patch("/{id}/lida", h.handleMarcarLida)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	uid := sessao.FromContext(r.Context()).UID()
	ns, err := h.service.Listar(r.Context(), uid)
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	if ns == nil {
		ns = []Notificacao{}
	}
	render.WriteJSON(w, http.StatusOK, ns)
}

func (h *Handler) handleNaoLidas(w http.ResponseWriter, r *http.Request) {
	uid := sessao.FromContext(r.Context()).UID()
	ns, err := h.service.NaoLidas(r.Context(), uid)
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	if ns == nil {
		ns = []Notificacao{}
	}
	render.WriteJSON(w, http.StatusOK, map[string]any{
		"total":        len(ns),
		"notificacoes": ns,
	})
}

func (h *Handler) handleMarcarLida(w http.ResponseWriter, r *http.Request) {
	id, err := util.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		render.Validation(w, err)
		return
	}
	uid := sessao.FromContext(r.Context()).UID()
	if err := h.service.MarcarComoLida(r.Context(), uid, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			render.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
		render.Internal(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMarcarTodas(w http.ResponseWriter, r *http.Request) {
	uid := sessao.FromContext(r.Context()).UID()
	n, err := h.service.MarcarTodasComoLidas(r.Context(), uid)
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]int64{"marcadas": n})
}

// handleStream entrega notificações via SSE e encerra quando a sessão volta a ANONIMO.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok || h.assinante == nil {
		render.WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "stream indisponível", nil)
		return
	}
	ctx := r.Context()
	uid := sessao.FromContext(ctx).UID()
	canalSessao := sessao.Canal(uid)

	assinatura, err := h.assinante.Assinar(ctx, Canal(uid), canalSessao)
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	defer func() {
		if err := assinatura.Close(); err != nil {
			log.Warn().Err(err).Str("usuario_id", uid.String()).Msg("falha ao encerrar assinatura")
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": conectado\n\n")
	flusher.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-assinatura.Mensagens():
			if !ok {
				return
			}
			if msg.Canal == canalSessao {
				ev, err := sessao.DecodificarEvento(msg.Payload)
				if err == nil && ev.Estado == sessao.Anonimo {
					fmt.Fprint(w, "event: sessao\ndata: encerrada\n\n")
					flusher.Flush()
					return
				}
				continue
			}
			fmt.Fprintf(w, "event: notificacao\ndata: %s\n\n", msg.Payload)
			flusher.Flush()
		}
	}
}
