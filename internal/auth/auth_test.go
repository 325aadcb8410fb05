package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	mgr := NewJWTManager(strings.Repeat("k", 32), time.Minute)

	token, jti, err := mgr.GenerateAccessToken("user-1", "COOPERADO", "fazenda-9")
	require.NoError(t, err)
	require.NotEmpty(t, jti)

	claims, err := mgr.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, AudienceApp, claims.AudienceAtual())
	assert.Equal(t, "COOPERADO", claims.Papel)
	assert.Equal(t, "fazenda-9", claims.FazendaID)
	assert.Equal(t, jti, claims.ID)
}

func TestPendingTokenAudience(t *testing.T) {
	mgr := NewJWTManager(strings.Repeat("k", 32), time.Minute)

	token, _, err := mgr.GeneratePendingToken("user-2", time.Minute)
	require.NoError(t, err)

	claims, err := mgr.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, AudiencePerfilPendente, claims.AudienceAtual())
	assert.Empty(t, claims.Papel)
}

func TestParseRejectsForeignSecret(t *testing.T) {
	token, _, err := NewJWTManager(strings.Repeat("a", 32), time.Minute).GenerateAccessToken("x", "COOPERADO", "")
	require.NoError(t, err)

	_, err = NewJWTManager(strings.Repeat("b", 32), time.Minute).ParseAndValidate(token)
	assert.Error(t, err)
}

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("segredo123")
	require.NoError(t, err)

	ok, err := Verify("segredo123", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify("outra", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Verify("segredo123", "lixo")
	assert.ErrorIs(t, err, ErrCredencialInvalida)
}

func TestRefreshTokenHashIsStable(t *testing.T) {
	raw, hashed, err := GenerateRefreshToken()
	require.NoError(t, err)
	assert.Equal(t, hashed, HashRefreshToken(raw))
	assert.Equal(t, "coop:refresh:app:"+hashed, RefreshRedisKey(hashed))
}

func TestProviderErrorMessages(t *testing.T) {
	tests := map[string]string{
		CodeUserNotFound:          "Usuário não encontrado.",
		CodeWrongPassword:         "Senha incorreta.",
		CodeTooManyRequests:       "Muitas tentativas. Tente novamente mais tarde.",
		CodePopupClosedByUser:     "Login cancelado. A janela foi fechada.",
		CodePopupBlocked:          "O popup de login foi bloqueado pelo navegador.",
		CodeCancelledPopupRequest: "Operação cancelada. Múltiplas solicitações de popup.",
		CodeAccountExists:         "Uma conta já existe com o mesmo email, mas credenciais diferentes.",
		"auth/desconhecido":       "Ocorreu um erro ao fazer login. Tente novamente.",
	}
	for code, want := range tests {
		assert.Equal(t, want, ProviderError{Code: code}.Error(), code)
	}

	var wrapped error = errors.Join(errors.New("contexto"), ErrSenhaIncorreta)
	assert.ErrorIs(t, wrapped, ErrSenhaIncorreta)
	assert.NotErrorIs(t, wrapped, ErrUsuarioNaoEncontrado)
}

func signFederated(t *testing.T, secret string, claims federatedClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestFederatedVerifier(t *testing.T) {
	secret := strings.Repeat("f", 32)
	v := NewFederatedVerifier("https://id.coop.example", "coop-gestao", secret)

	base := federatedClaims{
		Email:         "Ana@Example.com",
		EmailVerified: true,
		Name:          "Ana Maria Souza",
		Picture:       "https://img.example/ana.png",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "google-123",
			Issuer:    "https://id.coop.example",
			Audience:  jwt.ClaimStrings{"coop-gestao"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}

	id, err := v.Verify(signFederated(t, secret, base))
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", id.Email)
	assert.Equal(t, "Ana", id.Nome)
	assert.Equal(t, "Maria Souza", id.Sobrenome)
	assert.Equal(t, "google", id.Provedor)

	wrongIssuer := base
	wrongIssuer.Issuer = "https://evil.example"
	_, err = v.Verify(signFederated(t, secret, wrongIssuer))
	assert.ErrorIs(t, err, ErrCredencialInvalida)

	unverified := base
	unverified.EmailVerified = false
	_, err = v.Verify(signFederated(t, secret, unverified))
	assert.ErrorIs(t, err, ErrCredencialInvalida)

	_, err = v.Verify(signFederated(t, strings.Repeat("x", 32), base))
	assert.ErrorIs(t, err, ErrCredencialInvalida)

	var disabled *FederatedVerifier
	_, err = disabled.Verify("qualquer")
	assert.ErrorIs(t, err, ErrFederadoDesabilitado)
	assert.Nil(t, NewFederatedVerifier("", "", ""))
}
