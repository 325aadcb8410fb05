package plantacao

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("plantação não encontrada")
	ErrItemNaoEncontrado  = errors.New("item da compra não encontrado para a fazenda")
	ErrQuantidadeExcedida = errors.New("quantidade plantada excede o saldo do item da compra")
	ErrConflito           = errors.New("compra alterada concorrentemente; tente novamente")
	ErrJaColhida          = errors.New("plantação já colhida")
	ErrOutraFazenda       = errors.New("plantação pertence a outra fazenda")
)

// Plantacao nasce PLANTADA (Colhida=false) e muda uma única vez, na colheita.
type Plantacao struct {
	ID                 uuid.UUID  `json:"id"`
	CompraID           uuid.UUID  `json:"compraId"`
	InsumoID           uuid.UUID  `json:"insumoId"`
	InsumoNome         string     `json:"insumoNome"`
	QuantidadePlantada float64    `json:"quantidadePlantada"`
	DataPlantio        time.Time  `json:"dataPlantio"`
	CooperadoUID       uuid.UUID  `json:"cooperadoUid"`
	CooperadoNome      string     `json:"cooperadoNome"`
	FazendaID          uuid.UUID  `json:"fazendaId"`
	Colhida            bool       `json:"colhida"`
	DataColheita       *time.Time `json:"dataColheita,omitempty"`
	CriadoEm           time.Time  `json:"createdAt"`
	AtualizadoEm       time.Time  `json:"updatedAt"`
}

// RegistrarInput cria a plantação a partir de um item de compra.
type RegistrarInput struct {
	CompraID           uuid.UUID
	InsumoID           uuid.UUID
	InsumoNome         string
	QuantidadePlantada float64
	DataPlantio        time.Time
	CooperadoUID       uuid.UUID
	CooperadoNome      string
	FazendaID          uuid.UUID
}

// PlantarInput é o corpo aceito pela rota; cooperado e fazenda vêm da sessão.
type PlantarInput struct {
	CompraID    uuid.UUID  `json:"compraId"`
	InsumoID    uuid.UUID  `json:"insumoId"`
	Quantidade  float64    `json:"quantidade"`
	DataPlantio *time.Time `json:"dataPlantio"`
}
