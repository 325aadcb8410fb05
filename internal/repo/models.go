package repo

import (
	"time"

	"github.com/google/uuid"
)

// Provedores de identidade aceitos.
const (
	ProvedorSenha  = "senha"
	ProvedorGoogle = "google"
)

// Usuario representa o perfil persistido de cooperados e administradores.
type Usuario struct {
	ID             uuid.UUID
	Email          string
	Nome           string
	Sobrenome      string
	SenhaHash      *string
	Provedor       string
	ProvedorID     *string
	FotoURL        *string
	CPF            *string
	DataNascimento *time.Time
	Papel          string
	FazendaID      *uuid.UUID
	FazendaNome    *string
	Ativo          bool
	CriadoEm       time.Time
	AtualizadoEm   time.Time
}

// InsertUsuarioParams agrupa os campos do cadastro.
type InsertUsuarioParams struct {
	ID             uuid.UUID
	Email          string
	Nome           string
	Sobrenome      string
	SenhaHash      *string
	Provedor       string
	ProvedorID     *string
	FotoURL        *string
	CPF            *string
	DataNascimento *time.Time
	Papel          string
	FazendaID      *uuid.UUID
}

// CompletarPerfilParams é o merge aplicado na conclusão do perfil.
type CompletarPerfilParams struct {
	ID             uuid.UUID
	Nome           string
	Sobrenome      string
	CPF            string
	DataNascimento time.Time
	Papel          string
	FazendaID      *uuid.UUID
}

// TokenRefresh modela tabela de refresh tokens.
type TokenRefresh struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Audience  string
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
	Revogado  bool
}

// InsertRefreshTokenParams agrupa os campos de um novo refresh.
type InsertRefreshTokenParams struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Audience  string
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
}

// Membro resume um usuário para listagens e fan-out de notificações.
type Membro struct {
	ID           uuid.UUID  `json:"uid"`
	NomeCompleto string     `json:"nomeCompleto"`
	Email        string     `json:"email"`
	FazendaID    *uuid.UUID `json:"fazendaId,omitempty"`
}
