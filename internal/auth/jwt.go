package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Audiences emitidas pelo serviço.
const (
	// AudienceApp libera o shell autenticado; exige perfil completo.
	AudienceApp = "app"
	// AudiencePerfilPendente só permite concluir ou cancelar o perfil.
	AudiencePerfilPendente = "perfil-pendente"
)

// Claims representa as informações presentes em um JWT de acesso.
type Claims struct {
	Papel     string `json:"papel,omitempty"`
	FazendaID string `json:"fazenda_id,omitempty"`
	jwt.RegisteredClaims
}

// AudienceAtual devolve a primeira audience do token.
func (c *Claims) AudienceAtual() string {
	if len(c.RegisteredClaims.Audience) == 0 {
		return ""
	}
	return c.RegisteredClaims.Audience[0]
}

// JWTManager encapsula geração e validação de tokens.
type JWTManager struct {
	secret    []byte
	accessTTL time.Duration
}

// NewJWTManager cria o gerenciador com segredo e TTL configurados.
func NewJWTManager(secret string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), accessTTL: accessTTL}
}

// GenerateAccessToken cria o token do shell autenticado.
func (m *JWTManager) GenerateAccessToken(subject, papel, fazendaID string) (string, string, error) {
	return m.sign(subject, AudienceApp, papel, fazendaID, m.accessTTL)
}

// GeneratePendingToken cria o token restrito à conclusão de perfil.
func (m *JWTManager) GeneratePendingToken(subject string, ttl time.Duration) (string, string, error) {
	return m.sign(subject, AudiencePerfilPendente, "", "", ttl)
}

func (m *JWTManager) sign(subject, audience, papel, fazendaID string, ttl time.Duration) (string, string, error) {
	now := time.Now().UTC()
	jti := uuid.NewString()

	claims := Claims{
		Papel:     papel,
		FazendaID: fazendaID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", "", err
	}

	return signed, jti, nil
}

// ParseAndValidate verifica assinatura e expiração.
func (m *JWTManager) ParseAndValidate(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("token inválido")
	}
	if claims.AudienceAtual() == "" {
		return nil, errors.New("audience ausente")
	}

	return claims, nil
}
