package armazenamento

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/coopagro/gestao/internal/insumo"
)

var (
	ErrLocalNaoEncontrado    = errors.New("local de armazenamento não encontrado")
	ErrCapacidadeExcedida    = errors.New("capacidade do local excedida")
	ErrLocalOcupado          = errors.New("local ocupado por outra fazenda ou produto")
	ErrTipoIncompativel      = errors.New("tipo do local incompatível com a unidade do produto")
	ErrCapacidadeAbaixoDoUso = errors.New("capacidade máxima menor que a capacidade utilizada")
	ErrLocalEmUso            = errors.New("local de armazenamento em uso")
	ErrOcupacaoNaoEncontrada = errors.New("ocupação não encontrada")
)

// LocalArmazenamento é uma unidade física com capacidade limitada.
// Invariante: 0 <= CapacidadeUtilizada <= CapacidadeMaxima.
type LocalArmazenamento struct {
	ID                  uuid.UUID            `json:"id"`
	Nome                string               `json:"nome"`
	TipoArmazenamento   insumo.UnidadeMedida `json:"tipoArmazenamento"`
	CapacidadeMaxima    float64              `json:"capacidadeMaxima"`
	CapacidadeUtilizada float64              `json:"capacidadeUtilizada"`
	FazendaID           *uuid.UUID           `json:"fazendaId,omitempty"`
	FazendaNome         string               `json:"fazendaNome,omitempty"`
	ProdutoNome         string               `json:"produtoNome,omitempty"`
	CriadoEm            time.Time            `json:"createdAt"`
	AtualizadoEm        time.Time            `json:"updatedAt"`
}

// Livre devolve o espaço ainda disponível.
func (l LocalArmazenamento) Livre() float64 {
	return l.CapacidadeMaxima - l.CapacidadeUtilizada
}

// Vazio indica local sem carga e, portanto, sem vínculo.
func (l LocalArmazenamento) Vazio() bool {
	return l.CapacidadeUtilizada <= 0
}

// Aceita aplica as mesmas regras da entrada condicional, sem escrever nada.
func (l LocalArmazenamento) Aceita(c Carga) error {
	if l.TipoArmazenamento != c.UnidadeMedida {
		return ErrTipoIncompativel
	}
	if !l.Vazio() && l.FazendaID != nil {
		if *l.FazendaID != c.FazendaID || (l.ProdutoNome != "" && l.ProdutoNome != c.ProdutoNome) {
			return ErrLocalOcupado
		}
	}
	if l.CapacidadeUtilizada+c.Quantidade > l.CapacidadeMaxima {
		return ErrCapacidadeExcedida
	}
	return nil
}

// Ocupacao registra cada entrada de carga em um local.
type Ocupacao struct {
	ID                uuid.UUID  `json:"id"`
	LocalID           uuid.UUID  `json:"localId"`
	FazendaID         uuid.UUID  `json:"fazendaId"`
	ProdutoNome       string     `json:"produtoNome"`
	InsumoID          *uuid.UUID `json:"insumoId,omitempty"`
	Quantidade        float64    `json:"quantidade"`
	DataArmazenamento time.Time  `json:"dataArmazenamento"`
}

// Carga descreve o que entra no local.
type Carga struct {
	FazendaID     uuid.UUID
	FazendaNome   string
	ProdutoNome   string
	UnidadeMedida insumo.UnidadeMedida
	InsumoID      *uuid.UUID
	Quantidade    float64
}

// Entrada é o resultado de uma carga aceita.
type Entrada struct {
	Local    LocalArmazenamento `json:"local"`
	Ocupacao Ocupacao           `json:"ocupacao"`
}

// Vinculo é a parte do local que a venda pode limpar.
type Vinculo struct {
	CapacidadeUtilizada float64    `json:"capacidadeUtilizada"`
	FazendaID           *uuid.UUID `json:"fazendaId,omitempty"`
	FazendaNome         string     `json:"fazendaNome,omitempty"`
	ProdutoNome         string     `json:"produtoNome,omitempty"`
}

func vinculoDe(l LocalArmazenamento) Vinculo {
	return Vinculo{
		CapacidadeUtilizada: l.CapacidadeUtilizada,
		FazendaID:           l.FazendaID,
		FazendaNome:         l.FazendaNome,
		ProdutoNome:         l.ProdutoNome,
	}
}

// Saida devolve o estado antes e depois da retirada.
type Saida struct {
	Antes    Vinculo            `json:"antes"`
	Depois   LocalArmazenamento `json:"depois"`
	Liberado bool               `json:"liberado"`
}

// Retirado é quanto a saída efetivamente descontou (pode ser menor que o pedido).
func (s Saida) Retirado() float64 {
	return s.Antes.CapacidadeUtilizada - s.Depois.CapacidadeUtilizada
}

// RegistrarLocalInput contém os campos do cadastro.
type RegistrarLocalInput struct {
	Nome              string               `json:"nome"`
	TipoArmazenamento insumo.UnidadeMedida `json:"tipoArmazenamento"`
	CapacidadeMaxima  float64              `json:"capacidadeMaxima"`
}

// AtualizarLocalInput aplica merge parcial.
type AtualizarLocalInput struct {
	Nome              *string               `json:"nome"`
	TipoArmazenamento *insumo.UnidadeMedida `json:"tipoArmazenamento"`
	CapacidadeMaxima  *float64              `json:"capacidadeMaxima"`
}

// FiltroCompativeis seleciona locais que podem receber uma carga.
type FiltroCompativeis struct {
	Tipo        insumo.UnidadeMedida
	FazendaID   uuid.UUID
	ProdutoNome string
}
