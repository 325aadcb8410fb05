package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coopagro/gestao/internal/auth"
	httpmiddleware "github.com/coopagro/gestao/internal/http/middleware"
	"github.com/coopagro/gestao/internal/http/render"
	"github.com/coopagro/gestao/internal/papel"
	"github.com/coopagro/gestao/internal/repo"
	"github.com/coopagro/gestao/internal/service"
	"github.com/coopagro/gestao/internal/sessao"
	"github.com/coopagro/gestao/internal/util"
)

const refreshCookie = "coop_refresh"

// Login autentica por email e senha.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
		Senha string `json:"senha"`
	}
	if !render.DecodeJSON(w, r, &payload) {
		return
	}

	if strings.TrimSpace(payload.Email) == "" || strings.TrimSpace(payload.Senha) == "" {
		render.WriteError(w, http.StatusBadRequest, "VALIDATION", "email e senha são obrigatórios", nil)
		return
	}

	result, err := h.authService.LoginSenha(r.Context(), payload.Email, payload.Senha)
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}
	h.writeLoginSuccess(w, http.StatusOK, result)
}

// LoginFederado troca a asserção do provedor externo por uma sessão.
func (h *Handler) LoginFederado(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Assertion string `json:"assertion"`
		Codigo    string `json:"codigo"`
	}
	if !render.DecodeJSON(w, r, &payload) {
		return
	}

	result, err := h.authService.LoginFederado(r.Context(), payload.Assertion, payload.Codigo)
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}
	h.writeLoginSuccess(w, http.StatusOK, result)
}

type identificacaoPayload struct {
	Nome           string     `json:"nome"`
	Sobrenome      string     `json:"sobrenome"`
	CPF            string     `json:"cpf"`
	DataNascimento util.Data  `json:"dataNascimento"`
	Papel          string     `json:"papel"`
	FazendaID      *uuid.UUID `json:"fazendaId"`
}

func (p identificacaoPayload) nascimento() time.Time {
	return p.DataNascimento.Time
}

// Registrar cria uma conta completa com email e senha.
func (h *Handler) Registrar(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		identificacaoPayload
		Email          string `json:"email"`
		Senha          string `json:"senha"`
		ConfirmarSenha string `json:"confirmarSenha"`
	}
	if !render.DecodeJSON(w, r, &payload) {
		return
	}

	result, err := h.authService.Registrar(r.Context(), service.RegistroInput{
		Nome:           payload.Nome,
		Sobrenome:      payload.Sobrenome,
		Email:          payload.Email,
		CPF:            payload.CPF,
		DataNascimento: payload.nascimento(),
		Senha:          payload.Senha,
		ConfirmarSenha: payload.ConfirmarSenha,
		Papel:          payload.Papel,
		FazendaID:      payload.FazendaID,
	})
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}
	h.writeLoginSuccess(w, http.StatusCreated, result)
}

// CompletarPerfil conclui o cadastro iniciado pelo login federado.
func (h *Handler) CompletarPerfil(w http.ResponseWriter, r *http.Request) {
	var payload identificacaoPayload
	if !render.DecodeJSON(w, r, &payload) {
		return
	}

	uid := sessao.FromContext(r.Context()).UID()
	result, err := h.authService.CompletarPerfil(r.Context(), uid, service.PerfilInput{
		Nome:           payload.Nome,
		Sobrenome:      payload.Sobrenome,
		CPF:            payload.CPF,
		DataNascimento: payload.nascimento(),
		Papel:          payload.Papel,
		FazendaID:      payload.FazendaID,
	})
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}
	h.writeLoginSuccess(w, http.StatusOK, result)
}

// CancelarPerfil descarta o perfil pendente e encerra a sessão.
func (h *Handler) CancelarPerfil(w http.ResponseWriter, r *http.Request) {
	uid := sessao.FromContext(r.Context()).UID()
	if err := h.authService.CancelarPerfil(r.Context(), uid); err != nil {
		render.Internal(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, map[string]string{"redirecionar": sessao.RotaLogin})
}

// Refresh rotaciona token de acesso.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := getRefreshFromRequest(r)
	if err != nil {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "refresh ausente", nil)
		return
	}

	result, err := h.authService.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrRefreshInvalid) {
			h.clearRefreshCookie(w)
			render.WriteError(w, http.StatusUnauthorized, "AUTH", "refresh inválido", nil)
			return
		}
		h.handleAuthError(w, r, err)
		return
	}
	h.writeLoginSuccess(w, http.StatusOK, result)
}

// Logout revoga refresh token atual.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := getRefreshFromRequest(r)
	uid := sessao.FromContext(r.Context()).UID()
	if err := h.authService.Logout(r.Context(), uid, token); err != nil {
		log.Warn().Err(err).Msg("logout: falha ao revogar sessão")
	}

	h.clearRefreshCookie(w)
	render.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me retorna informações do usuário autenticado.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	subject, err := uuid.Parse(httpmiddleware.GetSubject(r.Context()))
	if err != nil {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	perfil, err := h.authService.Me(r.Context(), subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			render.WriteError(w, http.StatusUnauthorized, "AUTH", "usuário não encontrado", nil)
			return
		}
		render.Internal(w, r, err)
		return
	}

	render.WriteJSON(w, http.StatusOK, map[string]any{
		"user":         perfil,
		"capacidades":  perfil.Papel.Capacidades(),
		"nomeCompleto": perfil.NomeCompleto(),
	})
}

// Menu devolve a navegação do shell filtrada pelo papel.
func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	perfil, _ := sessao.FromContext(r.Context()).Usuario()
	render.WriteJSON(w, http.StatusOK, perfil.Papel.Menu())
}

// ResolverRota aplica o guard de navegação ao caminho informado.
func (h *Handler) ResolverRota(w http.ResponseWriter, r *http.Request) {
	caminho := r.URL.Query().Get("caminho")
	render.WriteJSON(w, http.StatusOK, sessao.Resolver(caminho, sessao.FromContext(r.Context())))
}

// Cooperados lista os membros com papel COOPERADO.
func (h *Handler) Cooperados(w http.ResponseWriter, r *http.Request) {
	membros, err := h.cooperados.ListarCooperados(r.Context())
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, membros)
}

func (h *Handler) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	if render.Validation(w, err) {
		return
	}

	var perr auth.ProviderError
	switch {
	case errors.As(err, &perr):
		status := http.StatusUnauthorized
		switch perr.Code {
		case auth.CodeTooManyRequests:
			status = http.StatusTooManyRequests
		case auth.CodeEmailAlreadyInUse, auth.CodeAccountExists:
			status = http.StatusConflict
		}
		render.WriteError(w, status, "AUTH", perr.Error(), map[string]string{"codigo": perr.Code})
	case errors.Is(err, service.ErrAccountDisabled):
		render.WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, service.ErrSessaoInvalida):
		render.WriteError(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	case errors.Is(err, auth.ErrFederadoDesabilitado):
		render.WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error(), nil)
	case errors.Is(err, repo.ErrCPFEmUso):
		render.WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), map[string]string{"campo": "cpf"})
	case errors.Is(err, repo.ErrFazendaInexistente):
		render.WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), map[string]string{"campo": "fazendaId"})
	case errors.Is(err, sessao.ErrTransicaoInvalida):
		render.WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, papel.ErrPapelInvalido):
		render.WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), map[string]string{"campo": "papel"})
	default:
		render.Internal(w, r, err)
	}
}

func (h *Handler) writeLoginSuccess(w http.ResponseWriter, status int, result *service.LoginResult) {
	if result.RefreshToken != "" {
		h.setRefreshCookie(w, result.RefreshToken, result.RefreshExpiry)
	}

	resp := map[string]any{
		"estado":       result.Estado,
		"access_token": result.AccessToken,
		"audience":     result.Audience,
		"user":         result.Perfil,
	}
	if result.Audience == auth.AudiencePerfilPendente {
		resp["redirecionar"] = sessao.RotaRegistro
	}
	render.WriteJSON(w, status, resp)
}

func getRefreshFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", errors.New("refresh ausente")
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	secure := !h.devCookies
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	secure := !h.devCookies
	sameSite := http.SameSiteNoneMode
	if h.devCookies {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}
