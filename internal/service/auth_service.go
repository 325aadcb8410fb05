package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/coopagro/gestao/internal/auth"
	"github.com/coopagro/gestao/internal/papel"
	"github.com/coopagro/gestao/internal/repo"
	"github.com/coopagro/gestao/internal/sessao"
	"github.com/coopagro/gestao/internal/util"
)

const idadeMinima = 18

var (
	// ErrAccountDisabled indica conta desativada.
	ErrAccountDisabled = errors.New("conta desativada")
	// ErrRefreshInvalid indica refresh token inválido ou expirado.
	ErrRefreshInvalid = errors.New("refresh token inválido")
	// ErrSessaoInvalida indica token sem usuário correspondente.
	ErrSessaoInvalida = errors.New("sessão inválida")
)

type authRepository interface {
	GetUsuarioByEmail(ctx context.Context, email string) (repo.Usuario, error)
	GetUsuarioByID(ctx context.Context, id uuid.UUID) (repo.Usuario, error)
	InsertUsuario(ctx context.Context, arg repo.InsertUsuarioParams) (repo.Usuario, error)
	CompletarPerfil(ctx context.Context, arg repo.CompletarPerfilParams) (repo.Usuario, error)
	RemoverPerfilPendente(ctx context.Context, id uuid.UUID) error
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.TokenRefresh, error)
	InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.TokenRefresh, error)
	InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// LoginLimits controla o bloqueio por tentativas de senha.
type LoginLimits struct {
	MaxAttempts int
	Window      time.Duration
}

// AuthService concentra regras de autenticação e sessões.
type AuthService struct {
	repo       authRepository
	redis      redisCommander
	jwt        *auth.JWTManager
	federado   *auth.FederatedVerifier
	cache      *sessao.Cache
	eventos    *sessao.Publicador
	refreshTTL time.Duration
	pendingTTL time.Duration
	limits     LoginLimits
}

// AuthDeps agrupa as dependências do serviço de autenticação.
type AuthDeps struct {
	Repo       *repo.Queries
	Redis      *redis.Client
	JWT        *auth.JWTManager
	Federado   *auth.FederatedVerifier
	RefreshTTL time.Duration
	PendingTTL time.Duration
	Limits     LoginLimits
}

// NewAuthService cria novo serviço.
func NewAuthService(d AuthDeps) *AuthService {
	return &AuthService{
		repo:       d.Repo,
		redis:      d.Redis,
		jwt:        d.JWT,
		federado:   d.Federado,
		cache:      sessao.NewCache(d.Redis, d.RefreshTTL),
		eventos:    sessao.NewPublicador(d.Redis),
		refreshTTL: d.RefreshTTL,
		pendingTTL: d.PendingTTL,
		limits:     d.Limits,
	}
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// LoginResult representa retorno padrão de autenticações.
type LoginResult struct {
	Estado        sessao.Estado
	Audience      string
	AccessToken   string
	RefreshToken  string
	RefreshExpiry time.Time
	Subject       uuid.UUID
	Perfil        sessao.Perfil
}

// RegistroInput reúne os campos do formulário de cadastro.
type RegistroInput struct {
	Nome           string
	Sobrenome      string
	Email          string
	CPF            string
	DataNascimento time.Time
	Senha          string
	ConfirmarSenha string
	Papel          string
	FazendaID      *uuid.UUID
}

// PerfilInput são os dados exigidos na conclusão do perfil.
type PerfilInput struct {
	Nome           string
	Sobrenome      string
	CPF            string
	DataNascimento time.Time
	Papel          string
	FazendaID      *uuid.UUID
}

// LoginSenha autentica por email e senha, limitando tentativas por email.
func (s *AuthService) LoginSenha(ctx context.Context, email, senha string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := util.ValidateEmail(email); err != nil {
		return nil, err
	}
	if s.bloqueado(ctx, email) {
		return nil, auth.ErrMuitasTentativas
	}

	user, err := s.repo.GetUsuarioByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("login: usuário não encontrado")
			s.registrarFalha(ctx, email)
			return nil, auth.ErrUsuarioNaoEncontrado
		}
		return nil, err
	}
	if user.SenhaHash == nil {
		return nil, auth.ErrCredencialInvalida
	}

	ok, err := auth.Verify(senha, *user.SenhaHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: verify password failed")
		return nil, auth.ErrCredencialInvalida
	}
	if !ok {
		log.Warn().Msg("login: senha inválida")
		s.registrarFalha(ctx, email)
		return nil, auth.ErrSenhaIncorreta
	}
	if !user.Ativo {
		return nil, ErrAccountDisabled
	}

	_ = s.redis.Del(ctx, chaveTentativas(email)).Err()
	return s.iniciarSessao(ctx, user)
}

// LoginFederado valida a asserção do provedor externo. codigoCliente carrega o
// erro reportado pelo popup (fechado, bloqueado, cancelado) quando houver.
func (s *AuthService) LoginFederado(ctx context.Context, assertion, codigoCliente string) (*LoginResult, error) {
	if codigoCliente = strings.TrimSpace(codigoCliente); codigoCliente != "" {
		return nil, auth.ProviderError{Code: codigoCliente}
	}

	ident, err := s.federado.Verify(assertion)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUsuarioByEmail(ctx, ident.Email)
	switch {
	case err == nil:
		if user.Provedor == repo.ProvedorSenha {
			return nil, auth.ErrContaComOutraCredencial
		}
		if !user.Ativo {
			return nil, ErrAccountDisabled
		}
		return s.iniciarSessao(ctx, user)
	case !errors.Is(err, repo.ErrNotFound):
		return nil, err
	}

	var foto *string
	if ident.FotoURL != "" {
		foto = &ident.FotoURL
	}
	subject := ident.Subject
	user, err = s.repo.InsertUsuario(ctx, repo.InsertUsuarioParams{
		ID:         uuid.New(),
		Email:      ident.Email,
		Nome:       ident.Nome,
		Sobrenome:  ident.Sobrenome,
		Provedor:   ident.Provedor,
		ProvedorID: &subject,
		FotoURL:    foto,
		Papel:      string(papel.Cooperado),
	})
	if err != nil {
		if errors.Is(err, repo.ErrEmailEmUso) {
			return nil, auth.ErrContaComOutraCredencial
		}
		return nil, err
	}
	log.Info().Str("uid", user.ID.String()).Msg("login federado: perfil novo aguardando conclusão")
	return s.iniciarSessao(ctx, user)
}

// Registrar cria um perfil completo com email e senha.
func (s *AuthService) Registrar(ctx context.Context, in RegistroInput) (*LoginResult, error) {
	if err := util.RequireMinLen(in.Nome, "nome", 2); err != nil {
		return nil, err
	}
	if err := util.RequireMinLen(in.Sobrenome, "sobrenome", 2); err != nil {
		return nil, err
	}
	if err := util.ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := util.ValidatePasswordConfirmation(in.Senha, in.ConfirmarSenha); err != nil {
		return nil, err
	}
	p, cpf, err := validarIdentificacao(in.CPF, in.DataNascimento, in.Papel, in.FazendaID)
	if err != nil {
		return nil, err
	}

	hash, err := auth.Hash(in.Senha)
	if err != nil {
		return nil, err
	}
	nasc := in.DataNascimento
	user, err := s.repo.InsertUsuario(ctx, repo.InsertUsuarioParams{
		ID:             uuid.New(),
		Email:          strings.TrimSpace(in.Email),
		Nome:           strings.TrimSpace(in.Nome),
		Sobrenome:      strings.TrimSpace(in.Sobrenome),
		SenhaHash:      &hash,
		Provedor:       repo.ProvedorSenha,
		CPF:            &cpf,
		DataNascimento: &nasc,
		Papel:          string(p),
		FazendaID:      fazendaOpcional(in.FazendaID),
	})
	if err != nil {
		if errors.Is(err, repo.ErrEmailEmUso) {
			return nil, auth.ErrEmailEmUso
		}
		return nil, err
	}
	return s.iniciarSessao(ctx, user)
}

// CompletarPerfil aplica o merge dos dados de identificação e promove a sessão.
func (s *AuthService) CompletarPerfil(ctx context.Context, uid uuid.UUID, in PerfilInput) (*LoginResult, error) {
	pendente, err := s.perfilPendente(ctx, uid)
	if err != nil {
		return nil, err
	}
	atual := sessao.Anonima().Autenticar(pendente)
	if atual.Estado() != sessao.PerfilIncompleto {
		return nil, sessao.ErrTransicaoInvalida
	}

	if in.Nome != "" {
		if err := util.RequireMinLen(in.Nome, "nome", 2); err != nil {
			return nil, err
		}
	}
	p, cpf, err := validarIdentificacao(in.CPF, in.DataNascimento, in.Papel, in.FazendaID)
	if err != nil {
		return nil, err
	}
	if _, err := atual.CompletarPerfil(sessao.DadosComplementares{
		Nome:           strings.TrimSpace(in.Nome),
		Sobrenome:      strings.TrimSpace(in.Sobrenome),
		CPF:            cpf,
		DataNascimento: in.DataNascimento,
		Papel:          p,
		FazendaID:      fazendaOpcional(in.FazendaID),
	}); err != nil {
		return nil, err
	}

	user, err := s.repo.CompletarPerfil(ctx, repo.CompletarPerfilParams{
		ID:             uid,
		Nome:           strings.TrimSpace(in.Nome),
		Sobrenome:      strings.TrimSpace(in.Sobrenome),
		CPF:            cpf,
		DataNascimento: in.DataNascimento,
		Papel:          string(p),
		FazendaID:      fazendaOpcional(in.FazendaID),
	})
	if err != nil {
		return nil, err
	}
	return s.iniciarSessao(ctx, user)
}

// CancelarPerfil descarta o perfil pendente e volta a sessão para anônima.
func (s *AuthService) CancelarPerfil(ctx context.Context, uid uuid.UUID) error {
	if err := s.repo.RemoverPerfilPendente(ctx, uid); err != nil {
		return err
	}
	return s.encerrar(ctx, uid)
}

// Refresh troca refresh token por novos tokens.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*LoginResult, error) {
	if rawToken == "" {
		return nil, ErrRefreshInvalid
	}

	hash := auth.HashRefreshToken(rawToken)
	record, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	if record.Revogado || util.Now().After(record.Expiracao) || record.Audience != auth.AudienceApp {
		return nil, ErrRefreshInvalid
	}

	redisKey := auth.RefreshRedisKey(hash)
	status, err := s.redis.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRefreshInvalid
	}
	if err != nil {
		return nil, err
	}
	if status != "active" {
		return nil, ErrRefreshInvalid
	}

	user, err := s.repo.GetUsuarioByID(ctx, record.Subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}
	if !user.Ativo {
		return nil, ErrAccountDisabled
	}
	perfil := perfilDeUsuario(user)
	if !sessao.PerfilCompleto(&perfil) {
		return nil, ErrRefreshInvalid
	}

	result, err := s.iniciarSessao(ctx, user)
	if err != nil {
		return nil, err
	}

	// Revoga token anterior (DB + Redis)
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	return result, nil
}

// Logout revoga refresh token atual e limpa o estado da sessão.
func (s *AuthService) Logout(ctx context.Context, uid uuid.UUID, rawToken string) error {
	if rawToken != "" {
		hash := auth.HashRefreshToken(rawToken)
		record, err := s.repo.GetRefreshTokenByHash(ctx, hash)
		switch {
		case err == nil:
			if uid == uuid.Nil {
				uid = record.Subject
			}
		case !errors.Is(err, repo.ErrNotFound):
			return err
		}
		if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if err := s.redis.Del(ctx, auth.RefreshRedisKey(hash)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
	}
	if uid == uuid.Nil {
		return nil
	}
	return s.encerrar(ctx, uid)
}

// Me retorna o perfil atual lido do banco.
func (s *AuthService) Me(ctx context.Context, uid uuid.UUID) (sessao.Perfil, error) {
	user, err := s.repo.GetUsuarioByID(ctx, uid)
	if err != nil {
		return sessao.Perfil{}, err
	}
	return perfilDeUsuario(user), nil
}

// CarregarSessao reconstrói a sessão a partir das claims do token.
func (s *AuthService) CarregarSessao(ctx context.Context, claims *auth.Claims) (sessao.Sessao, error) {
	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return sessao.Anonima(), ErrSessaoInvalida
	}

	switch claims.AudienceAtual() {
	case auth.AudienceApp:
		if p, ok, err := s.cache.Carregar(ctx, uid); err == nil && ok {
			return sessao.Anonima().Autenticar(p), nil
		} else if err != nil {
			log.Warn().Err(err).Msg("sessão: cache indisponível")
		}
	case auth.AudiencePerfilPendente:
		if p, ok, err := s.cache.CarregarPendente(ctx, uid); err == nil && ok {
			return sessao.Anonima().Autenticar(p), nil
		}
	default:
		return sessao.Anonima(), ErrSessaoInvalida
	}

	user, err := s.repo.GetUsuarioByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return sessao.Anonima(), ErrSessaoInvalida
		}
		return sessao.Anonima(), err
	}
	if !user.Ativo {
		return sessao.Anonima(), ErrAccountDisabled
	}

	perfil := perfilDeUsuario(user)
	sess := sessao.Anonima().Autenticar(perfil)
	if sess.Completa() {
		if err := s.cache.Salvar(ctx, perfil); err != nil {
			log.Warn().Err(err).Msg("sessão: falha ao gravar cache")
		}
	}
	return sess, nil
}

func (s *AuthService) iniciarSessao(ctx context.Context, user repo.Usuario) (*LoginResult, error) {
	perfil := perfilDeUsuario(user)
	sess := sessao.Anonima().Autenticar(perfil)

	if !sess.Completa() {
		token, _, err := s.jwt.GeneratePendingToken(user.ID.String(), s.pendingTTL)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SalvarPendente(ctx, perfil, s.pendingTTL); err != nil {
			return nil, err
		}
		s.publicar(ctx, user.ID, sess.Estado())
		return &LoginResult{
			Estado:      sess.Estado(),
			Audience:    auth.AudiencePerfilPendente,
			AccessToken: token,
			Subject:     user.ID,
			Perfil:      perfil,
		}, nil
	}

	fazendaID := ""
	if perfil.FazendaID != nil {
		fazendaID = perfil.FazendaID.String()
	}
	token, _, err := s.jwt.GenerateAccessToken(user.ID.String(), string(perfil.Papel), fazendaID)
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	expires := util.Now().Add(s.refreshTTL)
	if err := s.persistRefresh(ctx, user.ID, refreshHash, expires); err != nil {
		return nil, err
	}

	if err := s.cache.Limpar(ctx, user.ID); err != nil {
		log.Warn().Err(err).Msg("sessão: falha ao limpar cache")
	}
	if err := s.cache.Salvar(ctx, perfil); err != nil {
		log.Warn().Err(err).Msg("sessão: falha ao gravar cache")
	}
	s.publicar(ctx, user.ID, sess.Estado())

	return &LoginResult{
		Estado:        sess.Estado(),
		Audience:      auth.AudienceApp,
		AccessToken:   token,
		RefreshToken:  rawRefresh,
		RefreshExpiry: expires,
		Subject:       user.ID,
		Perfil:        perfil,
	}, nil
}

func (s *AuthService) encerrar(ctx context.Context, uid uuid.UUID) error {
	if err := s.cache.Limpar(ctx, uid); err != nil {
		return err
	}
	s.publicar(ctx, uid, sessao.Anonima().Estado())
	return nil
}

func (s *AuthService) publicar(ctx context.Context, uid uuid.UUID, estado sessao.Estado) {
	if err := s.eventos.Publicar(ctx, uid, estado); err != nil {
		log.Warn().Err(err).Str("uid", uid.String()).Msg("sessão: falha ao publicar evento")
	}
}

func (s *AuthService) perfilPendente(ctx context.Context, uid uuid.UUID) (sessao.Perfil, error) {
	if p, ok, err := s.cache.CarregarPendente(ctx, uid); err == nil && ok {
		return p, nil
	}
	user, err := s.repo.GetUsuarioByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return sessao.Perfil{}, ErrSessaoInvalida
		}
		return sessao.Perfil{}, err
	}
	return perfilDeUsuario(user), nil
}

func (s *AuthService) bloqueado(ctx context.Context, email string) bool {
	if s.limits.MaxAttempts <= 0 {
		return false
	}
	n, err := s.redis.Get(ctx, chaveTentativas(email)).Int()
	if err != nil {
		return false
	}
	return n >= s.limits.MaxAttempts
}

func (s *AuthService) registrarFalha(ctx context.Context, email string) {
	if s.limits.MaxAttempts <= 0 {
		return
	}
	key := chaveTentativas(email)
	n, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		log.Warn().Err(err).Msg("login: falha ao contar tentativa")
		return
	}
	if n == 1 {
		_ = s.redis.Expire(ctx, key, s.limits.Window).Err()
	}
}

func (s *AuthService) persistRefresh(ctx context.Context, subject uuid.UUID, hash string, expires time.Time) error {
	_, err := s.repo.InsertRefreshToken(ctx, repo.InsertRefreshTokenParams{
		ID:        uuid.New(),
		Subject:   subject,
		Audience:  auth.AudienceApp,
		TokenHash: hash,
		Expiracao: expires,
		CriadoEm:  util.Now(),
	})
	if err != nil {
		return err
	}

	if err := s.repo.InvalidateOtherRefreshTokens(ctx, subject, auth.AudienceApp, hash); err != nil {
		return err
	}

	return s.redis.Set(ctx, auth.RefreshRedisKey(hash), "active", time.Until(expires)).Err()
}

func chaveTentativas(email string) string {
	return fmt.Sprintf("login:tentativas:%s", email)
}

func validarIdentificacao(cpf string, nascimento time.Time, papelRaw string, fazendaID *uuid.UUID) (papel.Papel, string, error) {
	if err := util.ValidarCPF(cpf); err != nil {
		return "", "", err
	}
	if err := util.ValidarIdadeMinima(nascimento, idadeMinima, util.Now()); err != nil {
		return "", "", err
	}
	p, err := papel.Parse(papelRaw)
	if err != nil {
		return "", "", &util.ValidationError{Campo: "papel", Mensagem: "papel inválido"}
	}
	if p.ExigeFazenda() && (fazendaID == nil || *fazendaID == uuid.Nil) {
		return "", "", &util.ValidationError{Campo: "fazendaId", Mensagem: "fazenda obrigatória para cooperado"}
	}
	return p, util.SomenteDigitos(cpf), nil
}

func fazendaOpcional(fazendaID *uuid.UUID) *uuid.UUID {
	if fazendaID == nil || *fazendaID == uuid.Nil {
		return nil
	}
	return fazendaID
}

func perfilDeUsuario(u repo.Usuario) sessao.Perfil {
	p := sessao.Perfil{
		UID:            u.ID,
		Email:          u.Email,
		Nome:           u.Nome,
		Sobrenome:      u.Sobrenome,
		DataNascimento: u.DataNascimento,
		FazendaID:      u.FazendaID,
	}
	if u.FotoURL != nil {
		p.FotoURL = *u.FotoURL
	}
	if u.CPF != nil {
		p.CPF = *u.CPF
	}
	if u.FazendaNome != nil {
		p.FazendaNome = *u.FazendaNome
	}
	if parsed, err := papel.Parse(u.Papel); err == nil {
		p.Papel = parsed
	}
	return p
}
