package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/coopagro/gestao/internal/auth"
	"github.com/coopagro/gestao/internal/http/render"
	"github.com/coopagro/gestao/internal/papel"
	"github.com/coopagro/gestao/internal/sessao"
)

type contextKey string

const (
	ContextKeySubject  contextKey = "subject"
	ContextKeyAudience contextKey = "audience"
)

// SessaoLoader reconstrói a sessão a partir das claims do token.
type SessaoLoader interface {
	CarregarSessao(ctx context.Context, claims *auth.Claims) (sessao.Sessao, error)
}

// Auth valida JWT de acesso e injeta a sessão no contexto.
func Auth(jwtManager *auth.JWTManager, loader SessaoLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				render.WriteError(w, http.StatusUnauthorized, "AUTH", "token ausente", nil)
				return
			}

			ctx, ok := carregar(w, r, jwtManager, loader, token)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthOpcional carrega a sessão quando há token e segue anônima caso contrário.
func AuthOpcional(jwtManager *auth.JWTManager, loader SessaoLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r.WithContext(sessao.WithSessao(r.Context(), sessao.Anonima())))
				return
			}
			claims, err := jwtManager.ParseAndValidate(token)
			if err != nil {
				next.ServeHTTP(w, r.WithContext(sessao.WithSessao(r.Context(), sessao.Anonima())))
				return
			}
			s, err := loader.CarregarSessao(r.Context(), claims)
			if err != nil {
				s = sessao.Anonima()
			}
			next.ServeHTTP(w, r.WithContext(sessao.WithSessao(r.Context(), s)))
		})
	}
}

func carregar(w http.ResponseWriter, r *http.Request, jwtManager *auth.JWTManager, loader SessaoLoader, token string) (context.Context, bool) {
	claims, err := jwtManager.ParseAndValidate(token)
	if err != nil {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "token inválido", nil)
		return nil, false
	}

	s, err := loader.CarregarSessao(r.Context(), claims)
	if err != nil {
		render.WriteError(w, http.StatusUnauthorized, "AUTH", "sessão inválida", nil)
		return nil, false
	}

	ctx := context.WithValue(r.Context(), ContextKeySubject, claims.Subject)
	ctx = context.WithValue(ctx, ContextKeyAudience, claims.AudienceAtual())
	ctx = sessao.WithSessao(ctx, s)
	return ctx, true
}

// bearerToken aceita o header Authorization e, para streams SSE, o parâmetro access_token.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	if r.Method == http.MethodGet {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	return ""
}

// GetSubject recupera subject do contexto.
func GetSubject(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeySubject).(string)
	return val
}

// GetAudience recupera audience do contexto.
func GetAudience(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeyAudience).(string)
	return val
}

// RequireSessaoCompleta libera o shell autenticado apenas para perfis completos.
func RequireSessaoCompleta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := sessao.FromContext(r.Context())
		if GetAudience(r.Context()) != auth.AudienceApp || !s.Completa() {
			render.WriteError(w, http.StatusForbidden, "FORBIDDEN", "perfil incompleto", map[string]string{"redirecionar": sessao.RotaLogin})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePerfilPendente aceita apenas sessões aguardando conclusão de perfil.
func RequirePerfilPendente(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := sessao.FromContext(r.Context())
		if s.Estado() != sessao.PerfilIncompleto {
			render.WriteError(w, http.StatusConflict, "CONFLICT", "não há perfil pendente", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCapacidade consulta a tabela de capacidades do papel da sessão.
func RequireCapacidade(c papel.Capacidade) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sessao.FromContext(r.Context()).Pode(c) {
				render.WriteError(w, http.StatusForbidden, "FORBIDDEN", "sem acesso", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
