package produto

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coopagro/gestao/internal/insumo"
)

var (
	ErrNotFound    = errors.New("produto não encontrado")
	ErrNaoProdutor = errors.New("produto pertence a outro produtor")
)

// Tipo classifica o produto final.
type Tipo string

const (
	Grao      Tipo = "Grão"
	Hortalica Tipo = "Hortaliça"
	Fruta     Tipo = "Fruta"
	Laticinio Tipo = "Laticínio"
	Outro     Tipo = "Outro"
)

func (t Tipo) Valido() bool {
	switch t {
	case Grao, Hortalica, Fruta, Laticinio, Outro:
		return true
	}
	return false
}

// Produto é um item vendável cadastrado por um membro.
type Produto struct {
	ID            uuid.UUID            `json:"id"`
	Nome          string               `json:"nome"`
	Descricao     string               `json:"descricao"`
	Tipo          Tipo                 `json:"tipo"`
	UnidadeMedida insumo.UnidadeMedida `json:"unidadeMedida"`
	PrecoVenda    decimal.Decimal      `json:"precoVenda"`
	DataProducao  *time.Time           `json:"dataProducao,omitempty"`
	ProdutorID    uuid.UUID            `json:"produtorId"`
	ProdutorNome  string               `json:"produtorNome"`
	InsumoID      *uuid.UUID           `json:"insumoId,omitempty"`
	CriadoEm      time.Time            `json:"dataCadastro"`
	AtualizadoEm  time.Time            `json:"updatedAt"`
}

// CriarInput contém os campos do cadastro; o produtor vem da sessão.
type CriarInput struct {
	Nome          string               `json:"nome"`
	Descricao     string               `json:"descricao"`
	Tipo          Tipo                 `json:"tipo"`
	UnidadeMedida insumo.UnidadeMedida `json:"unidadeMedida"`
	PrecoVenda    decimal.Decimal      `json:"precoVenda"`
	DataProducao  *time.Time           `json:"dataProducao"`
	InsumoID      *uuid.UUID           `json:"insumoId"`

	ProdutorID   uuid.UUID `json:"-"`
	ProdutorNome string    `json:"-"`
}

// AtualizarInput aplica merge parcial.
type AtualizarInput struct {
	Nome          *string               `json:"nome"`
	Descricao     *string               `json:"descricao"`
	Tipo          *Tipo                 `json:"tipo"`
	UnidadeMedida *insumo.UnidadeMedida `json:"unidadeMedida"`
	PrecoVenda    *decimal.Decimal      `json:"precoVenda"`
	DataProducao  *time.Time            `json:"dataProducao"`
	InsumoID      *uuid.UUID            `json:"insumoId"`
}
