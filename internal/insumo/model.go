package insumo

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("insumo não encontrado")
	ErrCompraNaoEncontrada = errors.New("compra não encontrada")
	ErrVersaoDesatualizada = errors.New("compra alterada por outra operação")
)

// TipoInsumo classifica o insumo.
type TipoInsumo string

const (
	Semente      TipoInsumo = "SEMENTE"
	Fertilizante TipoInsumo = "FERTILIZANTE"
	Racao        TipoInsumo = "RACAO"
	Defensivo    TipoInsumo = "DEFENSIVO"
	Outro        TipoInsumo = "OUTRO"
)

// Valido indica se o tipo pertence ao conjunto conhecido.
func (t TipoInsumo) Valido() bool {
	switch t {
	case Semente, Fertilizante, Racao, Defensivo, Outro:
		return true
	}
	return false
}

// UnidadeMedida também define o tipo de um local de armazenamento.
type UnidadeMedida string

const (
	Quilograma UnidadeMedida = "kg"
	Grama      UnidadeMedida = "g"
	Litro      UnidadeMedida = "l"
	Mililitro  UnidadeMedida = "ml"
	Unidade    UnidadeMedida = "un"
	Caixa      UnidadeMedida = "cx"
	Saca       UnidadeMedida = "sc"
)

// Valida indica se a unidade pertence ao conjunto conhecido.
func (u UnidadeMedida) Valida() bool {
	switch u {
	case Quilograma, Grama, Litro, Mililitro, Unidade, Caixa, Saca:
		return true
	}
	return false
}

// StatusCompra é informativo; nenhuma transição é imposta.
type StatusCompra string

const (
	Pendente  StatusCompra = "PENDENTE"
	Concluida StatusCompra = "CONCLUIDA"
	Cancelada StatusCompra = "CANCELADA"
)

func (s StatusCompra) Valido() bool {
	return s == Pendente || s == Concluida || s == Cancelada
}

// Insumo é um item de catálogo comprado pela cooperativa.
type Insumo struct {
	ID              uuid.UUID       `json:"id"`
	Nome            string          `json:"nome"`
	Tipo            TipoInsumo      `json:"tipo"`
	UnidadeMedida   UnidadeMedida   `json:"unidadeMedida"`
	ValorPorUnidade decimal.Decimal `json:"valorPorUnidade"`
	CriadoEm        time.Time       `json:"createdAt"`
	AtualizadoEm    time.Time       `json:"updatedAt"`
}

// ItemCompra vincula um cooperado a uma parte da compra.
type ItemCompra struct {
	InsumoID           uuid.UUID       `json:"insumoId"`
	InsumoNome         string          `json:"insumoNome"`
	InsumoTipo         TipoInsumo      `json:"insumoTipo"`
	UnidadeMedida      UnidadeMedida   `json:"unidadeMedida"`
	ValorPorUnidade    decimal.Decimal `json:"valorPorUnidade"`
	QuantidadeComprada float64         `json:"quantidadeComprada"`
	QuantidadeUsada    float64         `json:"quantidadeUsada"`
	ValorTotal         decimal.Decimal `json:"valorTotal"`
	FazendaID          uuid.UUID       `json:"fazendaId"`
	CooperadoUID       uuid.UUID       `json:"cooperadoUid"`
	CooperadoNome      string          `json:"cooperadoNome"`
}

// Disponivel devolve o saldo ainda não plantado.
func (i ItemCompra) Disponivel() float64 {
	return i.QuantidadeComprada - i.QuantidadeUsada
}

// Compra agrupa itens comprados em conjunto.
type Compra struct {
	ID           uuid.UUID       `json:"id"`
	Itens        []ItemCompra    `json:"itens"`
	ValorTotal   decimal.Decimal `json:"valorTotal"`
	DataCompra   time.Time       `json:"dataCompra"`
	Status       StatusCompra    `json:"status"`
	Versao       int             `json:"versao"`
	CriadoEm     time.Time       `json:"createdAt"`
	AtualizadoEm time.Time       `json:"updatedAt"`
}

// CriarInsumoInput contém os campos do cadastro.
type CriarInsumoInput struct {
	Nome            string          `json:"nome"`
	Tipo            TipoInsumo      `json:"tipo"`
	UnidadeMedida   UnidadeMedida   `json:"unidadeMedida"`
	ValorPorUnidade decimal.Decimal `json:"valorPorUnidade"`
}

// AtualizarInsumoInput aplica merge parcial.
type AtualizarInsumoInput struct {
	Nome            *string          `json:"nome"`
	Tipo            *TipoInsumo      `json:"tipo"`
	UnidadeMedida   *UnidadeMedida   `json:"unidadeMedida"`
	ValorPorUnidade *decimal.Decimal `json:"valorPorUnidade"`
}

// ItemCompraInput descreve uma linha da compra.
type ItemCompraInput struct {
	InsumoID      uuid.UUID `json:"insumoId"`
	Quantidade    float64   `json:"quantidade"`
	FazendaID     uuid.UUID `json:"fazendaId"`
	CooperadoUID  uuid.UUID `json:"cooperadoUid"`
	CooperadoNome string    `json:"cooperadoNome"`
}

// RegistrarCompraInput contém as linhas e a data opcional da compra.
type RegistrarCompraInput struct {
	Itens      []ItemCompraInput `json:"itens"`
	DataCompra *time.Time        `json:"dataCompra"`
}

// FiltroCompras restringe a listagem por fazenda ou cooperado.
type FiltroCompras struct {
	FazendaID    *uuid.UUID
	CooperadoUID *uuid.UUID
}
