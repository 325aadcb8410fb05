package fazenda

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("fazenda não encontrada")
	ErrCNPJEmUso = errors.New("CNPJ já cadastrado")
)

// Fazenda representa uma propriedade associada à cooperativa.
type Fazenda struct {
	ID           uuid.UUID `json:"id"`
	Nome         string    `json:"nome"`
	CNPJ         string    `json:"cnpj"`
	Endereco     string    `json:"endereco,omitempty"`
	CriadoEm     time.Time `json:"createdAt"`
	AtualizadoEm time.Time `json:"updatedAt"`
}

// CriarInput contém os campos do cadastro.
type CriarInput struct {
	Nome     string `json:"nome"`
	CNPJ     string `json:"cnpj"`
	Endereco string `json:"endereco"`
}

// AtualizarInput aplica merge parcial; campos nil ficam como estão.
type AtualizarInput struct {
	Nome     *string `json:"nome"`
	CNPJ     *string `json:"cnpj"`
	Endereco *string `json:"endereco"`
}
