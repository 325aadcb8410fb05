package venda_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopagro/gestao/internal/armazenamento"
	"github.com/coopagro/gestao/internal/colheita"
	"github.com/coopagro/gestao/internal/insumo"
	"github.com/coopagro/gestao/internal/metrics"
	"github.com/coopagro/gestao/internal/notificacao"
	"github.com/coopagro/gestao/internal/papel"
	"github.com/coopagro/gestao/internal/plantacao"
	"github.com/coopagro/gestao/internal/repo"
	"github.com/coopagro/gestao/internal/sessao"
	"github.com/coopagro/gestao/internal/venda"
)

var errNaoUsado = errors.New("não usado no fluxo")

type memInsumos struct {
	insumos map[uuid.UUID]insumo.Insumo
	compras map[uuid.UUID]insumo.Compra
}

func (m *memInsumos) CreateInsumo(ctx context.Context, in insumo.CriarInsumoInput) (*insumo.Insumo, error) {
	return nil, errNaoUsado
}

func (m *memInsumos) UpdateInsumo(ctx context.Context, id uuid.UUID, in insumo.AtualizarInsumoInput) (*insumo.Insumo, error) {
	return nil, errNaoUsado
}

func (m *memInsumos) DeleteInsumo(ctx context.Context, id uuid.UUID) error { return errNaoUsado }

func (m *memInsumos) GetInsumo(ctx context.Context, id uuid.UUID) (*insumo.Insumo, error) {
	i, ok := m.insumos[id]
	if !ok {
		return nil, insumo.ErrNotFound
	}
	return &i, nil
}

func (m *memInsumos) ListInsumos(ctx context.Context) ([]insumo.Insumo, error) { return nil, errNaoUsado }

func (m *memInsumos) CreateCompra(ctx context.Context, c insumo.Compra) (*insumo.Compra, error) {
	c.Versao = 1
	m.compras[c.ID] = c
	return &c, nil
}

func (m *memInsumos) GetCompra(ctx context.Context, id uuid.UUID) (*insumo.Compra, error) {
	c, ok := m.compras[id]
	if !ok {
		return nil, insumo.ErrCompraNaoEncontrada
	}
	c.Itens = append([]insumo.ItemCompra(nil), c.Itens...)
	return &c, nil
}

func (m *memInsumos) ListCompras(ctx context.Context, f insumo.FiltroCompras) ([]insumo.Compra, error) {
	return nil, errNaoUsado
}

func (m *memInsumos) UpdateStatus(ctx context.Context, id uuid.UUID, s insumo.StatusCompra) (*insumo.Compra, error) {
	return nil, errNaoUsado
}

func (m *memInsumos) AtualizarItens(ctx context.Context, id uuid.UUID, versao int, itens []insumo.ItemCompra) (*insumo.Compra, error) {
	c := m.compras[id]
	if c.Versao != versao {
		return nil, insumo.ErrVersaoDesatualizada
	}
	c.Itens = append([]insumo.ItemCompra(nil), itens...)
	c.Versao++
	m.compras[id] = c
	return &c, nil
}

type memPlantacoes map[uuid.UUID]plantacao.Plantacao

func (m memPlantacoes) Create(ctx context.Context, in plantacao.RegistrarInput) (*plantacao.Plantacao, error) {
	p := plantacao.Plantacao{
		ID: uuid.New(), CompraID: in.CompraID, InsumoID: in.InsumoID, InsumoNome: in.InsumoNome,
		QuantidadePlantada: in.QuantidadePlantada, DataPlantio: in.DataPlantio,
		CooperadoUID: in.CooperadoUID, CooperadoNome: in.CooperadoNome, FazendaID: in.FazendaID,
	}
	m[p.ID] = p
	return &p, nil
}

func (m memPlantacoes) GetByID(ctx context.Context, id uuid.UUID) (*plantacao.Plantacao, error) {
	p, ok := m[id]
	if !ok {
		return nil, plantacao.ErrNotFound
	}
	return &p, nil
}

func (m memPlantacoes) ListByFazenda(ctx context.Context, fazendaID uuid.UUID) ([]plantacao.Plantacao, error) {
	return nil, errNaoUsado
}

func (m memPlantacoes) MarcarColhida(ctx context.Context, id uuid.UUID, data time.Time) (*plantacao.Plantacao, error) {
	p := m[id]
	if p.Colhida {
		return nil, plantacao.ErrJaColhida
	}
	p.Colhida, p.DataColheita = true, &data
	m[id] = p
	return &p, nil
}

func (m memPlantacoes) DesmarcarColhida(ctx context.Context, id uuid.UUID) error {
	p := m[id]
	p.Colhida, p.DataColheita = false, nil
	m[id] = p
	return nil
}

type memLocais struct {
	locais    map[uuid.UUID]armazenamento.LocalArmazenamento
	ocupacoes map[uuid.UUID]armazenamento.Ocupacao
}

func (m *memLocais) Create(ctx context.Context, in armazenamento.RegistrarLocalInput) (*armazenamento.LocalArmazenamento, error) {
	l := armazenamento.LocalArmazenamento{ID: uuid.New(), Nome: in.Nome, TipoArmazenamento: in.TipoArmazenamento, CapacidadeMaxima: in.CapacidadeMaxima}
	m.locais[l.ID] = l
	return &l, nil
}

func (m *memLocais) Update(ctx context.Context, id uuid.UUID, in armazenamento.AtualizarLocalInput) (*armazenamento.LocalArmazenamento, error) {
	return nil, errNaoUsado
}

func (m *memLocais) Delete(ctx context.Context, id uuid.UUID) error { return errNaoUsado }

func (m *memLocais) GetByID(ctx context.Context, id uuid.UUID) (*armazenamento.LocalArmazenamento, error) {
	l, ok := m.locais[id]
	if !ok {
		return nil, armazenamento.ErrLocalNaoEncontrado
	}
	return &l, nil
}

func (m *memLocais) List(ctx context.Context, fazendaID *uuid.UUID) ([]armazenamento.LocalArmazenamento, error) {
	return nil, errNaoUsado
}

func (m *memLocais) ListEmUso(ctx context.Context, fazendaID uuid.UUID) ([]armazenamento.LocalArmazenamento, error) {
	return nil, errNaoUsado
}

func (m *memLocais) ListCompativeis(ctx context.Context, f armazenamento.FiltroCompativeis) ([]armazenamento.LocalArmazenamento, error) {
	return nil, errNaoUsado
}

func (m *memLocais) RegistrarEntrada(ctx context.Context, localID uuid.UUID, c armazenamento.Carga) (*armazenamento.Entrada, error) {
	l, ok := m.locais[localID]
	if !ok {
		return nil, armazenamento.ErrLocalNaoEncontrado
	}
	if err := l.Aceita(c); err != nil {
		return nil, err
	}
	l.CapacidadeUtilizada += c.Quantidade
	l.FazendaID, l.FazendaNome, l.ProdutoNome = &c.FazendaID, c.FazendaNome, c.ProdutoNome
	m.locais[localID] = l
	o := armazenamento.Ocupacao{ID: uuid.New(), LocalID: localID, FazendaID: c.FazendaID, ProdutoNome: c.ProdutoNome, Quantidade: c.Quantidade}
	m.ocupacoes[o.ID] = o
	return &armazenamento.Entrada{Local: l, Ocupacao: o}, nil
}

func (m *memLocais) EstornarEntrada(ctx context.Context, ocupacaoID uuid.UUID) (*armazenamento.LocalArmazenamento, error) {
	return nil, errNaoUsado
}

func (m *memLocais) RegistrarSaida(ctx context.Context, localID, fazendaID uuid.UUID, q float64) (*armazenamento.Saida, error) {
	l := m.locais[localID]
	if l.FazendaID != nil && *l.FazendaID != fazendaID {
		return nil, armazenamento.ErrLocalOcupado
	}
	antes := armazenamento.Vinculo{CapacidadeUtilizada: l.CapacidadeUtilizada, FazendaID: l.FazendaID, FazendaNome: l.FazendaNome, ProdutoNome: l.ProdutoNome}
	l.CapacidadeUtilizada -= q
	if l.CapacidadeUtilizada <= 0 {
		l.CapacidadeUtilizada = 0
		l.FazendaID, l.FazendaNome, l.ProdutoNome = nil, "", ""
	}
	m.locais[localID] = l
	return &armazenamento.Saida{Antes: antes, Depois: l, Liberado: antes.CapacidadeUtilizada > 0 && l.CapacidadeUtilizada == 0}, nil
}

func (m *memLocais) RestaurarSaida(ctx context.Context, localID uuid.UUID, s armazenamento.Saida) (*armazenamento.LocalArmazenamento, error) {
	return nil, errNaoUsado
}

func (m *memLocais) Ocupacoes(ctx context.Context, localID uuid.UUID) ([]armazenamento.Ocupacao, error) {
	return nil, errNaoUsado
}

type memColheitas struct{ colhidos []colheita.ProdutoColhido }

func (m *memColheitas) Create(ctx context.Context, p colheita.ProdutoColhido) (*colheita.ProdutoColhido, error) {
	m.colhidos = append(m.colhidos, p)
	return &p, nil
}

func (m *memColheitas) ListByFazenda(ctx context.Context, fazendaID uuid.UUID) ([]colheita.ProdutoColhido, error) {
	return m.colhidos, nil
}

type memVendas struct{ vendas []venda.Venda }

func (m *memVendas) Create(ctx context.Context, v venda.Venda) (*venda.Venda, error) {
	m.vendas = append(m.vendas, v)
	return &v, nil
}

func (m *memVendas) GetByChave(ctx context.Context, fazendaID uuid.UUID, chave string) (*venda.Venda, error) {
	return nil, venda.ErrNotFound
}

func (m *memVendas) ListByFazenda(ctx context.Context, fazendaID uuid.UUID) ([]venda.Venda, error) {
	return m.vendas, nil
}

type memNotificacoes struct {
	mu sync.Mutex
	ns []notificacao.Notificacao
}

func (m *memNotificacoes) CreateBatch(ctx context.Context, ns []notificacao.Notificacao) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ns = append(m.ns, ns...)
	return nil
}

func (m *memNotificacoes) ListByUsuario(ctx context.Context, uid uuid.UUID, limite int) ([]notificacao.Notificacao, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notificacao.Notificacao
	for _, n := range m.ns {
		if n.UsuarioID == uid {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotificacoes) ListNaoLidas(ctx context.Context, uid uuid.UUID) ([]notificacao.Notificacao, error) {
	return m.ListByUsuario(ctx, uid, 0)
}

func (m *memNotificacoes) MarcarComoLida(ctx context.Context, uid, id uuid.UUID) error { return nil }

func (m *memNotificacoes) MarcarTodasComoLidas(ctx context.Context, uid uuid.UUID) (int64, error) {
	return 0, nil
}

type membros []repo.Membro

func (m membros) ListMembrosPorPapel(ctx context.Context, p string, excluir *uuid.UUID) ([]repo.Membro, error) {
	var out []repo.Membro
	for _, x := range m {
		if excluir == nil || x.ID != *excluir {
			out = append(out, x)
		}
	}
	return out, nil
}

type nomesFazenda map[uuid.UUID]string

func (n nomesFazenda) Nome(ctx context.Context, id uuid.UUID) (string, error) {
	return n[id], nil
}

// Compra 100 → planta 40 → colhe 40 em local de 1000 → vende 40.
func TestFluxoCompraAteVenda(t *testing.T) {
	ctx := context.Background()
	fazendaID := uuid.New()
	nasc := time.Date(1982, 7, 9, 0, 0, 0, 0, time.UTC)
	sess := sessao.Anonima().Autenticar(sessao.Perfil{
		UID: uuid.New(), Nome: "Joana", Sobrenome: "Lima", CPF: "52998224725", DataNascimento: &nasc,
		Papel: papel.Cooperado, FazendaID: &fazendaID, FazendaNome: "Fazenda Boa Vista",
	})
	vizinho := uuid.New()

	milho := insumo.Insumo{ID: uuid.New(), Nome: "Milho", Tipo: insumo.Semente, UnidadeMedida: insumo.Quilograma, ValorPorUnidade: decimal.RequireFromString("2.50")}
	insumos := &memInsumos{insumos: map[uuid.UUID]insumo.Insumo{milho.ID: milho}, compras: map[uuid.UUID]insumo.Compra{}}
	locais := &memLocais{locais: map[uuid.UUID]armazenamento.LocalArmazenamento{}, ocupacoes: map[uuid.UUID]armazenamento.Ocupacao{}}
	notificacoes := &memNotificacoes{}
	m := metrics.New()

	insumoSvc := insumo.NewService(insumos)
	plantacaoSvc := plantacao.NewService(memPlantacoes{}, insumos, m)
	armazemSvc := armazenamento.NewService(locais, m)
	notificacaoSvc := notificacao.NewService(notificacoes, membros{{ID: sess.UID()}, {ID: vizinho}}, nil, nil, m)
	colheitaSvc := colheita.NewService(colheita.Deps{
		Repo:          &memColheitas{},
		Plantacoes:    plantacaoSvc,
		Armazenamento: armazemSvc,
		Insumos:       insumoSvc,
		Fazendas:      nomesFazenda{fazendaID: "Fazenda Boa Vista"},
		Metrics:       m,
	})
	vendaSvc := venda.NewService(venda.Deps{
		Repo:          &memVendas{},
		Armazenamento: armazemSvc,
		Avisos:        notificacaoSvc,
		Metrics:       m,
	})

	compra, err := insumoSvc.RegistrarCompra(ctx, insumo.RegistrarCompraInput{Itens: []insumo.ItemCompraInput{{
		InsumoID: milho.ID, Quantidade: 100, FazendaID: fazendaID, CooperadoUID: sess.UID(), CooperadoNome: "Joana Lima",
	}}})
	require.NoError(t, err)
	assert.True(t, compra.ValorTotal.Equal(decimal.RequireFromString("250")))

	p, err := plantacaoSvc.Plantar(ctx, sess, plantacao.PlantarInput{CompraID: compra.ID, InsumoID: milho.ID, Quantidade: 40})
	require.NoError(t, err)
	assert.Equal(t, 40.0, insumos.compras[compra.ID].Itens[0].QuantidadeUsada)

	local, err := armazemSvc.RegistrarLocal(ctx, armazenamento.RegistrarLocalInput{Nome: "Silo Central", TipoArmazenamento: insumo.Quilograma, CapacidadeMaxima: 1000})
	require.NoError(t, err)

	colhido, err := colheitaSvc.Colher(ctx, sess, colheita.ColherInput{PlantacaoID: p.ID, LocalID: local.ID, Quantidade: 40})
	require.NoError(t, err)
	assert.Equal(t, "Milho", colhido.ProdutoNome)
	assert.Equal(t, 40.0, locais.locais[local.ID].CapacidadeUtilizada)

	v, err := vendaSvc.RegistrarVenda(ctx, sess, venda.RegistrarInput{LocalID: local.ID, Quantidade: 40, Regiao: venda.Sul})
	require.NoError(t, err)
	vendaSvc.Aguardar()

	assert.Equal(t, "Milho", v.ProdutoNome)
	depois := locais.locais[local.ID]
	assert.Zero(t, depois.CapacidadeUtilizada)
	assert.Nil(t, depois.FazendaID)
	assert.Empty(t, depois.ProdutoNome)
	assert.Equal(t, 40.0, insumos.compras[compra.ID].Itens[0].QuantidadeUsada)

	paraVizinho, err := notificacaoSvc.Listar(ctx, vizinho)
	require.NoError(t, err)
	require.Len(t, paraVizinho, 1)
	assert.Equal(t, notificacao.LocalDisponivel, paraVizinho[0].Tipo)
	assert.Equal(t, "O local Silo Central que armazenava Milho está agora disponível.", paraVizinho[0].Mensagem)

	paraVendedor, err := notificacaoSvc.Listar(ctx, sess.UID())
	require.NoError(t, err)
	assert.Empty(t, paraVendedor)
}
