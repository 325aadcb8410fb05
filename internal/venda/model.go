package venda

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/coopagro/gestao/internal/util"
)

var (
	ErrNotFound       = errors.New("venda não encontrada")
	ErrRegiaoInvalida = errors.New("região inválida")
	ErrSemFazenda     = errors.New("perfil sem fazenda vinculada")
	ErrChaveEmUso     = errors.New("chave de idempotência já utilizada")
	ErrSemVendas      = errors.New("nenhuma venda para exportar")
)

// Regiao de destino da venda.
type Regiao string

const (
	Norte       Regiao = "Norte"
	Nordeste    Regiao = "Nordeste"
	CentroOeste Regiao = "Centro-Oeste"
	Sudeste     Regiao = "Sudeste"
	Sul         Regiao = "Sul"
)

// Regioes na ordem usada pelo painel.
var Regioes = []Regiao{Norte, Nordeste, CentroOeste, Sudeste, Sul}

func (r Regiao) Valida() bool {
	for _, v := range Regioes {
		if r == v {
			return true
		}
	}
	return false
}

// Venda é só de inclusão; nunca é alterada depois de gravada.
type Venda struct {
	ID                uuid.UUID `json:"id"`
	ProdutoNome       string    `json:"produtoNome"`
	Quantidade        float64   `json:"quantidade"`
	Regiao            Regiao    `json:"regiao"`
	LocalID           uuid.UUID `json:"localArmazenamentoId"`
	FazendaID         uuid.UUID `json:"fazendaId"`
	FazendaNome       string    `json:"fazendaNome"`
	DataVenda         time.Time `json:"dataVenda"`
	ChaveIdempotencia *string   `json:"chaveIdempotencia,omitempty"`
	CriadoEm          time.Time `json:"createdAt"`
}

// RegistrarInput é o corpo aceito pela rota; fazenda vem da sessão.
type RegistrarInput struct {
	LocalID           uuid.UUID  `json:"localArmazenamentoId"`
	Quantidade        float64    `json:"quantidade"`
	Regiao            Regiao     `json:"regiao"`
	ProdutoNome       string     `json:"produtoNome"`
	DataVenda         *util.Data `json:"dataVenda"`
	ChaveIdempotencia string     `json:"chaveIdempotencia"`
}

type TotalRegiao struct {
	Regiao     Regiao  `json:"regiao"`
	Quantidade float64 `json:"quantidade"`
}

// Resumo traz as cinco regiões mesmo quando zeradas.
type Resumo struct {
	PorRegiao []TotalRegiao `json:"porRegiao"`
	Total     float64       `json:"total"`
	Vendas    int           `json:"vendas"`
}

// Relatorio aponta o CSV exportado.
type Relatorio struct {
	URL    string `json:"url"`
	Chave  string `json:"chave"`
	Linhas int    `json:"linhas"`
}
