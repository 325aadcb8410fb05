package papel

import (
	"errors"
	"strings"
)

// Papel é o conjunto fechado de perfis de acesso.
type Papel string

const (
	Cooperado   Papel = "COOPERADO"
	Cooperativa Papel = "COOPERATIVA"
)

// ErrPapelInvalido indica valor fora do conjunto conhecido.
var ErrPapelInvalido = errors.New("papel inválido")

// Parse normaliza e valida o papel recebido.
func Parse(raw string) (Papel, error) {
	switch p := Papel(strings.ToUpper(strings.TrimSpace(raw))); p {
	case Cooperado, Cooperativa:
		return p, nil
	}
	return "", ErrPapelInvalido
}

// ExigeFazenda indica se o cadastro precisa de fazenda vinculada.
func (p Papel) ExigeFazenda() bool {
	return p == Cooperado
}

// Capacidade nomeia uma ação liberada por papel.
type Capacidade string

const (
	VerInsumos          Capacidade = "insumos:ler"
	GerirInsumos        Capacidade = "insumos:gerir"
	VerCompras          Capacidade = "compras:ler"
	RegistrarCompra     Capacidade = "compras:registrar"
	VerFazendas         Capacidade = "fazendas:ler"
	GerirFazendas       Capacidade = "fazendas:gerir"
	VerLocais           Capacidade = "armazenamento:ler"
	GerirLocais         Capacidade = "armazenamento:gerir"
	Plantar             Capacidade = "plantacoes:registrar"
	Colher              Capacidade = "colheitas:registrar"
	Vender              Capacidade = "vendas:registrar"
	VerVendas           Capacidade = "vendas:ler"
	GerirProdutos       Capacidade = "produtos:gerir"
	VerCooperados       Capacidade = "cooperados:ler"
	ReceberNotificacoes Capacidade = "notificacoes:ler"
)

var tabela = map[Papel][]Capacidade{
	Cooperado: {
		VerInsumos, VerCompras, VerFazendas, VerLocais,
		Plantar, Colher, Vender, VerVendas,
		GerirProdutos, ReceberNotificacoes,
	},
	Cooperativa: {
		VerInsumos, GerirInsumos, VerCompras, RegistrarCompra,
		VerFazendas, GerirFazendas, VerLocais, GerirLocais,
		VerVendas, GerirProdutos, VerCooperados, ReceberNotificacoes,
	},
}

// Pode consulta a tabela de capacidades.
func (p Papel) Pode(c Capacidade) bool {
	for _, got := range tabela[p] {
		if got == c {
			return true
		}
	}
	return false
}

// Capacidades devolve uma cópia da lista do papel.
func (p Papel) Capacidades() []Capacidade {
	return append([]Capacidade(nil), tabela[p]...)
}

// ItemMenu é uma entrada de navegação do shell autenticado.
type ItemMenu struct {
	Caminho    string     `json:"caminho"`
	Titulo     string     `json:"titulo"`
	Capacidade Capacidade `json:"-"`
}

var menu = []ItemMenu{
	{Caminho: "/app/home", Titulo: "Início"},
	{Caminho: "/app/insumos", Titulo: "Insumos", Capacidade: GerirInsumos},
	{Caminho: "/app/meus-insumos", Titulo: "Meus Insumos", Capacidade: Plantar},
	{Caminho: "/app/minha-plantacao", Titulo: "Minha Plantação", Capacidade: Colher},
	{Caminho: "/app/locais-em-uso", Titulo: "Locais em Uso", Capacidade: Vender},
	{Caminho: "/app/armazenamento", Titulo: "Armazenamento", Capacidade: GerirLocais},
	{Caminho: "/app/fazendas", Titulo: "Fazendas", Capacidade: GerirFazendas},
	{Caminho: "/app/produtos", Titulo: "Produtos", Capacidade: GerirProdutos},
	{Caminho: "/app/painel-vendas", Titulo: "Painel de Vendas", Capacidade: VerVendas},
}

// Menu filtra as entradas visíveis para o papel.
func (p Papel) Menu() []ItemMenu {
	itens := make([]ItemMenu, 0, len(menu))
	for _, item := range menu {
		if item.Capacidade == "" || p.Pode(item.Capacidade) {
			itens = append(itens, item)
		}
	}
	return itens
}
