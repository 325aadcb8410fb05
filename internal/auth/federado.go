package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrFederadoDesabilitado indica que o emissor federado não foi configurado.
var ErrFederadoDesabilitado = errors.New("login federado não configurado")

// IdentidadeFederada é o usuário bruto devolvido pelo provedor externo.
type IdentidadeFederada struct {
	Subject   string
	Email     string
	Nome      string
	Sobrenome string
	FotoURL   string
	Provedor  string
}

type federatedClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Provider      string `json:"provider"`
	jwt.RegisteredClaims
}

// FederatedVerifier valida asserções HS256 assinadas pelo gateway de identidade.
type FederatedVerifier struct {
	issuer   string
	audience string
	secret   []byte
}

// NewFederatedVerifier devolve nil quando não há emissor configurado.
func NewFederatedVerifier(issuer, audience, secret string) *FederatedVerifier {
	if issuer == "" || secret == "" {
		return nil
	}
	return &FederatedVerifier{issuer: issuer, audience: audience, secret: []byte(secret)}
}

// Verify valida assinatura, emissor, audience e expiração e extrai a identidade.
func (v *FederatedVerifier) Verify(assertion string) (*IdentidadeFederada, error) {
	if v == nil {
		return nil, ErrFederadoDesabilitado
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &federatedClaims{}
	token, err := jwt.NewParser(opts...).ParseWithClaims(assertion, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrCredencialInvalida
	}
	if claims.Subject == "" || claims.Email == "" || !claims.EmailVerified {
		return nil, ErrCredencialInvalida
	}

	nome, sobrenome := claims.GivenName, claims.FamilyName
	if nome == "" {
		nome, sobrenome = dividirNome(claims.Name)
	}
	provedor := claims.Provider
	if provedor == "" {
		provedor = "google"
	}

	return &IdentidadeFederada{
		Subject:   claims.Subject,
		Email:     strings.ToLower(strings.TrimSpace(claims.Email)),
		Nome:      nome,
		Sobrenome: sobrenome,
		FotoURL:   claims.Picture,
		Provedor:  provedor,
	}, nil
}

func dividirNome(completo string) (string, string) {
	partes := strings.Fields(completo)
	switch len(partes) {
	case 0:
		return "", ""
	case 1:
		return partes[0], ""
	}
	return partes[0], strings.Join(partes[1:], " ")
}
