package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopagro/gestao/internal/auth"
	"github.com/coopagro/gestao/internal/papel"
	"github.com/coopagro/gestao/internal/repo"
	"github.com/coopagro/gestao/internal/sessao"
	"github.com/coopagro/gestao/internal/util"
)

const (
	federadoIssuer   = "https://login.coop.test"
	federadoAudience = "coop-gestao"
)

var federadoSecret = strings.Repeat("f", 40)

type stubAuthRepo struct {
	users    map[uuid.UUID]repo.Usuario
	fazendas map[uuid.UUID]string
	refresh  map[string]repo.TokenRefresh
}

func newStubAuthRepo() *stubAuthRepo {
	return &stubAuthRepo{
		users:    make(map[uuid.UUID]repo.Usuario),
		fazendas: make(map[uuid.UUID]string),
		refresh:  make(map[string]repo.TokenRefresh),
	}
}

func (s *stubAuthRepo) GetUsuarioByEmail(ctx context.Context, email string) (repo.Usuario, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return repo.Usuario{}, repo.ErrNotFound
}

func (s *stubAuthRepo) GetUsuarioByID(ctx context.Context, id uuid.UUID) (repo.Usuario, error) {
	u, ok := s.users[id]
	if !ok {
		return repo.Usuario{}, repo.ErrNotFound
	}
	return u, nil
}

func (s *stubAuthRepo) InsertUsuario(ctx context.Context, arg repo.InsertUsuarioParams) (repo.Usuario, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, arg.Email) {
			return repo.Usuario{}, repo.ErrEmailEmUso
		}
	}
	u := repo.Usuario{
		ID:             arg.ID,
		Email:          strings.ToLower(arg.Email),
		Nome:           arg.Nome,
		Sobrenome:      arg.Sobrenome,
		SenhaHash:      arg.SenhaHash,
		Provedor:       arg.Provedor,
		ProvedorID:     arg.ProvedorID,
		FotoURL:        arg.FotoURL,
		CPF:            arg.CPF,
		DataNascimento: arg.DataNascimento,
		Papel:          arg.Papel,
		FazendaID:      arg.FazendaID,
		Ativo:          true,
	}
	s.nomeFazenda(&u)
	s.users[u.ID] = u
	return u, nil
}

func (s *stubAuthRepo) CompletarPerfil(ctx context.Context, arg repo.CompletarPerfilParams) (repo.Usuario, error) {
	u, ok := s.users[arg.ID]
	if !ok {
		return repo.Usuario{}, repo.ErrNotFound
	}
	if arg.Nome != "" {
		u.Nome = arg.Nome
	}
	if arg.Sobrenome != "" {
		u.Sobrenome = arg.Sobrenome
	}
	cpf := arg.CPF
	nasc := arg.DataNascimento
	u.CPF = &cpf
	u.DataNascimento = &nasc
	u.Papel = arg.Papel
	u.FazendaID = arg.FazendaID
	s.nomeFazenda(&u)
	s.users[u.ID] = u
	return u, nil
}

func (s *stubAuthRepo) RemoverPerfilPendente(ctx context.Context, id uuid.UUID) error {
	if u, ok := s.users[id]; ok && (u.CPF == nil || u.DataNascimento == nil) {
		delete(s.users, id)
	}
	return nil
}

func (s *stubAuthRepo) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.TokenRefresh, error) {
	t, ok := s.refresh[tokenHash]
	if !ok {
		return repo.TokenRefresh{}, repo.ErrNotFound
	}
	return t, nil
}

func (s *stubAuthRepo) InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.TokenRefresh, error) {
	t := repo.TokenRefresh{
		ID:        arg.ID,
		Subject:   arg.Subject,
		Audience:  arg.Audience,
		TokenHash: arg.TokenHash,
		Expiracao: arg.Expiracao,
		CriadoEm:  arg.CriadoEm,
	}
	s.refresh[arg.TokenHash] = t
	return t, nil
}

func (s *stubAuthRepo) InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error {
	for hash, t := range s.refresh {
		if t.Subject == subject && t.Audience == audience && hash != keepHash {
			t.Revogado = true
			s.refresh[hash] = t
		}
	}
	return nil
}

func (s *stubAuthRepo) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	t, ok := s.refresh[tokenHash]
	if !ok {
		return repo.ErrNotFound
	}
	t.Revogado = true
	s.refresh[tokenHash] = t
	return nil
}

func (s *stubAuthRepo) nomeFazenda(u *repo.Usuario) {
	u.FazendaNome = nil
	if u.FazendaID == nil {
		return
	}
	if nome, ok := s.fazendas[*u.FazendaID]; ok {
		u.FazendaNome = &nome
	}
}

type stubRedis struct {
	store     map[string]string
	published map[string][]string
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if s.store == nil {
		s.store = make(map[string]string)
	}
	s.store[key] = toString(value)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	val, ok := s.store[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := s.store[key]; ok {
			delete(s.store, key)
			removed++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(removed)
	return cmd
}

func (s *stubRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	if s.store == nil {
		s.store = make(map[string]string)
	}
	n, _ := strconv.ParseInt(s.store[key], 10, 64)
	n++
	s.store[key] = strconv.FormatInt(n, 10)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(n)
	return cmd
}

func (s *stubRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	_, ok := s.store[key]
	cmd.SetVal(ok)
	return cmd
}

func (s *stubRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	if s.published == nil {
		s.published = make(map[string][]string)
	}
	s.published[channel] = append(s.published[channel], toString(message))
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func toString(value any) string {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(value)
}

func newTestAuthService(r *stubAuthRepo, rdb *stubRedis) *AuthService {
	return &AuthService{
		repo:       r,
		redis:      rdb,
		jwt:        auth.NewJWTManager(strings.Repeat("a", 32), time.Minute),
		federado:   auth.NewFederatedVerifier(federadoIssuer, federadoAudience, federadoSecret),
		cache:      sessao.NewCache(rdb, time.Hour),
		eventos:    sessao.NewPublicador(rdb),
		refreshTTL: time.Hour,
		pendingTTL: 10 * time.Minute,
		limits:     LoginLimits{MaxAttempts: 3, Window: time.Minute},
	}
}

func seedUsuario(t *testing.T, r *stubAuthRepo, email, senha string) repo.Usuario {
	t.Helper()
	hash, err := auth.Hash(senha)
	require.NoError(t, err)

	fazenda := uuid.New()
	r.fazendas[fazenda] = "Sítio Boa Vista"
	cpf := "52998224725"
	nasc := time.Date(1988, time.March, 3, 0, 0, 0, 0, time.UTC)
	u, err := r.InsertUsuario(context.Background(), repo.InsertUsuarioParams{
		ID:             uuid.New(),
		Email:          email,
		Nome:           "Maria",
		Sobrenome:      "Lima",
		SenhaHash:      &hash,
		Provedor:       repo.ProvedorSenha,
		CPF:            &cpf,
		DataNascimento: &nasc,
		Papel:          string(papel.Cooperado),
		FazendaID:      &fazenda,
	})
	require.NoError(t, err)
	return u
}

func assinarAssercao(t *testing.T, sub, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":            federadoIssuer,
		"aud":            federadoAudience,
		"sub":            sub,
		"email":          email,
		"email_verified": true,
		"name":           "João Pereira Santos",
		"picture":        "https://img.coop.test/joao.png",
		"exp":            time.Now().Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(federadoSecret))
	require.NoError(t, err)
	return signed
}

func TestLoginSenhaAutenticaPerfilCompleto(t *testing.T) {
	r := newStubAuthRepo()
	rdb := &stubRedis{}
	user := seedUsuario(t, r, "maria@example.com", "segredo1")
	svc := newTestAuthService(r, rdb)

	result, err := svc.LoginSenha(context.Background(), "Maria@Example.com", "segredo1")
	require.NoError(t, err)

	assert.Equal(t, sessao.Autenticado, result.Estado)
	assert.Equal(t, auth.AudienceApp, result.Audience)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, "Sítio Boa Vista", result.Perfil.FazendaNome)
	assert.Equal(t, "active", rdb.store[auth.RefreshRedisKey(auth.HashRefreshToken(result.RefreshToken))])

	claims, err := svc.JWT().ParseAndValidate(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, string(papel.Cooperado), claims.Papel)
	assert.Equal(t, user.FazendaID.String(), claims.FazendaID)

	require.Len(t, rdb.published[sessao.Canal(user.ID)], 1)
}

func TestLoginSenhaBloqueiaAposTentativas(t *testing.T) {
	r := newStubAuthRepo()
	rdb := &stubRedis{}
	seedUsuario(t, r, "maria@example.com", "segredo1")
	svc := newTestAuthService(r, rdb)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.LoginSenha(ctx, "maria@example.com", "errada")
		require.ErrorIs(t, err, auth.ErrSenhaIncorreta)
	}

	_, err := svc.LoginSenha(ctx, "maria@example.com", "segredo1")
	require.ErrorIs(t, err, auth.ErrMuitasTentativas)

	var perr auth.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "Muitas tentativas. Tente novamente mais tarde.", perr.Error())
}

func TestLoginSenhaUsuarioInexistente(t *testing.T) {
	svc := newTestAuthService(newStubAuthRepo(), &stubRedis{})

	_, err := svc.LoginSenha(context.Background(), "ninguem@example.com", "qualquer")
	assert.ErrorIs(t, err, auth.ErrUsuarioNaoEncontrado)
}

func TestLoginFederadoNovoPerfilFicaPendente(t *testing.T) {
	r := newStubAuthRepo()
	rdb := &stubRedis{}
	svc := newTestAuthService(r, rdb)
	ctx := context.Background()

	result, err := svc.LoginFederado(ctx, assinarAssercao(t, "g-123", "joao@example.com"), "")
	require.NoError(t, err)

	assert.Equal(t, sessao.PerfilIncompleto, result.Estado)
	assert.Equal(t, auth.AudiencePerfilPendente, result.Audience)
	assert.Empty(t, result.RefreshToken)
	assert.Equal(t, "João", result.Perfil.Nome)
	assert.Equal(t, "Pereira Santos", result.Perfil.Sobrenome)

	claims, err := svc.JWT().ParseAndValidate(result.AccessToken)
	require.NoError(t, err)
	sess, err := svc.CarregarSessao(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, sessao.PerfilIncompleto, sess.Estado())
	_, ok := sess.Usuario()
	assert.False(t, ok)

	fazenda := uuid.New()
	r.fazendas[fazenda] = "Fazenda Esperança"
	done, err := svc.CompletarPerfil(ctx, result.Subject, PerfilInput{
		CPF:            "529.982.247-25",
		DataNascimento: time.Date(1990, time.July, 1, 0, 0, 0, 0, time.UTC),
		Papel:          "cooperado",
		FazendaID:      &fazenda,
	})
	require.NoError(t, err)
	assert.Equal(t, sessao.Autenticado, done.Estado)
	assert.Equal(t, "52998224725", done.Perfil.CPF)
	assert.Equal(t, "Fazenda Esperança", done.Perfil.FazendaNome)
	assert.NotEmpty(t, done.RefreshToken)

	_, err = svc.CompletarPerfil(ctx, result.Subject, PerfilInput{})
	assert.ErrorIs(t, err, sessao.ErrTransicaoInvalida)
}

func TestCompletarPerfilValidaCampos(t *testing.T) {
	r := newStubAuthRepo()
	svc := newTestAuthService(r, &stubRedis{})
	ctx := context.Background()

	result, err := svc.LoginFederado(ctx, assinarAssercao(t, "g-9", "ana@example.com"), "")
	require.NoError(t, err)

	_, err = svc.CompletarPerfil(ctx, result.Subject, PerfilInput{
		CPF:            "111.111.111-11",
		DataNascimento: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Papel:          "COOPERATIVA",
	})
	var verr *util.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cpf", verr.Campo)

	_, err = svc.CompletarPerfil(ctx, result.Subject, PerfilInput{
		CPF:            "52998224725",
		DataNascimento: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Papel:          "COOPERADO",
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "fazendaId", verr.Campo)

	u := r.users[result.Subject]
	assert.Nil(t, u.CPF, "falha de validação não escreve nada")
}

func TestLoginFederadoContaComSenha(t *testing.T) {
	r := newStubAuthRepo()
	seedUsuario(t, r, "maria@example.com", "segredo1")
	svc := newTestAuthService(r, &stubRedis{})

	_, err := svc.LoginFederado(context.Background(), assinarAssercao(t, "g-1", "maria@example.com"), "")
	assert.ErrorIs(t, err, auth.ErrContaComOutraCredencial)
}

func TestLoginFederadoRepassaErroDoPopup(t *testing.T) {
	svc := newTestAuthService(newStubAuthRepo(), &stubRedis{})

	_, err := svc.LoginFederado(context.Background(), "", auth.CodePopupClosedByUser)
	require.Error(t, err)
	assert.Equal(t, "Login cancelado. A janela foi fechada.", err.Error())
}

func TestCancelarPerfilVoltaParaAnonimo(t *testing.T) {
	r := newStubAuthRepo()
	rdb := &stubRedis{}
	svc := newTestAuthService(r, rdb)
	ctx := context.Background()

	result, err := svc.LoginFederado(ctx, assinarAssercao(t, "g-2", "novo@example.com"), "")
	require.NoError(t, err)

	require.NoError(t, svc.CancelarPerfil(ctx, result.Subject))
	_, exists := r.users[result.Subject]
	assert.False(t, exists)

	msgs := rdb.published[sessao.Canal(result.Subject)]
	require.NotEmpty(t, msgs)
	ev, err := sessao.DecodificarEvento(msgs[len(msgs)-1])
	require.NoError(t, err)
	assert.Equal(t, sessao.Anonimo, ev.Estado)
}

func TestRegistrarValidaIdadeEFazenda(t *testing.T) {
	svc := newTestAuthService(newStubAuthRepo(), &stubRedis{})
	ctx := context.Background()
	fazenda := uuid.New()

	base := RegistroInput{
		Nome:           "Carlos",
		Sobrenome:      "Alves",
		Email:          "carlos@example.com",
		CPF:            "52998224725",
		DataNascimento: time.Date(1980, 5, 5, 0, 0, 0, 0, time.UTC),
		Senha:          "segredo1",
		ConfirmarSenha: "segredo1",
		Papel:          "COOPERADO",
		FazendaID:      &fazenda,
	}

	menor := base
	menor.DataNascimento = util.Now().AddDate(-17, 0, 0)
	_, err := svc.Registrar(ctx, menor)
	var verr *util.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "dataNascimento", verr.Campo)

	semFazenda := base
	semFazenda.FazendaID = nil
	_, err = svc.Registrar(ctx, semFazenda)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "fazendaId", verr.Campo)

	senhaDiferente := base
	senhaDiferente.ConfirmarSenha = "outra123"
	_, err = svc.Registrar(ctx, senhaDiferente)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "confirmarSenha", verr.Campo)

	result, err := svc.Registrar(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, sessao.Autenticado, result.Estado)

	_, err = svc.Registrar(ctx, base)
	assert.ErrorIs(t, err, auth.ErrEmailEmUso)
}

func TestRefreshRotacionaELogoutRevoga(t *testing.T) {
	r := newStubAuthRepo()
	rdb := &stubRedis{}
	user := seedUsuario(t, r, "maria@example.com", "segredo1")
	svc := newTestAuthService(r, rdb)
	ctx := context.Background()

	login, err := svc.LoginSenha(ctx, "maria@example.com", "segredo1")
	require.NoError(t, err)

	renovado, err := svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, renovado.RefreshToken)

	_, err = svc.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshInvalid)

	require.NoError(t, svc.Logout(ctx, uuid.Nil, renovado.RefreshToken))
	_, err = svc.Refresh(ctx, renovado.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshInvalid)

	_, ok, err := svc.cache.Carregar(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCarregarSessaoUsaCacheEDescartaIncompleto(t *testing.T) {
	r := newStubAuthRepo()
	rdb := &stubRedis{}
	user := seedUsuario(t, r, "maria@example.com", "segredo1")
	svc := newTestAuthService(r, rdb)
	ctx := context.Background()

	login, err := svc.LoginSenha(ctx, "maria@example.com", "segredo1")
	require.NoError(t, err)
	claims, err := svc.JWT().ParseAndValidate(login.AccessToken)
	require.NoError(t, err)

	delete(r.users, user.ID)
	sess, err := svc.CarregarSessao(ctx, claims)
	require.NoError(t, err, "perfil completo vem do cache")
	assert.True(t, sess.Completa())
	assert.True(t, sess.Pode(papel.Vender))

	require.NoError(t, svc.cache.Limpar(ctx, user.ID))
	_, err = svc.CarregarSessao(ctx, claims)
	assert.ErrorIs(t, err, ErrSessaoInvalida)
}
