package colheita

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/coopagro/gestao/internal/insumo"
)

var (
	ErrJaRegistrada = errors.New("colheita já registrada para a plantação")
	ErrOutraFazenda = errors.New("plantação pertence a outra fazenda")
	ErrSemFazenda   = errors.New("perfil sem fazenda vinculada")
)

// ProdutoColhido é o registro imutável de uma colheita.
type ProdutoColhido struct {
	ID            uuid.UUID            `json:"id"`
	PlantacaoID   uuid.UUID            `json:"plantacaoId"`
	InsumoID      uuid.UUID            `json:"insumoId"`
	ProdutoNome   string               `json:"produtoNome"`
	UnidadeMedida insumo.UnidadeMedida `json:"produtoUnidadeMedida"`
	Quantidade    float64              `json:"quantidade"`
	LocalID       uuid.UUID            `json:"localArmazenamentoId"`
	LocalNome     string               `json:"localArmazenamentoNome"`
	OcupacaoID    *uuid.UUID           `json:"ocupacaoId,omitempty"`
	FazendaID     uuid.UUID            `json:"fazendaId"`
	FazendaNome   string               `json:"fazendaNome"`
	DataColheita  time.Time            `json:"dataColheita"`
	CriadoEm      time.Time            `json:"createdAt"`
}

// ColherInput é o corpo aceito pela rota.
type ColherInput struct {
	PlantacaoID  uuid.UUID  `json:"plantacaoId"`
	LocalID      uuid.UUID  `json:"localArmazenamentoId"`
	Quantidade   float64    `json:"quantidade"`
	ProdutoNome  string     `json:"produtoNome"`
	DataColheita *time.Time `json:"dataColheita"`
}
