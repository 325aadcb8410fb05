package plantacao

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopagro/gestao/internal/insumo"
	"github.com/coopagro/gestao/internal/papel"
	"github.com/coopagro/gestao/internal/sessao"
)

type memCompras struct {
	mu          sync.Mutex
	compras     map[uuid.UUID]insumo.Compra
	antesGravar func()
	sempreFalha bool
	gravacoes   int
}

func (m *memCompras) GetCompra(ctx context.Context, id uuid.UUID) (*insumo.Compra, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.compras[id]
	if !ok {
		return nil, insumo.ErrCompraNaoEncontrada
	}
	c.Itens = append([]insumo.ItemCompra(nil), c.Itens...)
	return &c, nil
}

func (m *memCompras) AtualizarItens(ctx context.Context, id uuid.UUID, versao int, itens []insumo.ItemCompra) (*insumo.Compra, error) {
	if hook := m.antesGravar; hook != nil {
		m.antesGravar = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gravacoes++
	c := m.compras[id]
	if m.sempreFalha || c.Versao != versao {
		return nil, insumo.ErrVersaoDesatualizada
	}
	c.Itens = itens
	c.Versao++
	m.compras[id] = c
	return &c, nil
}

type memPlantacoes struct {
	plantacoes map[uuid.UUID]Plantacao
	falhar     error
}

func (m *memPlantacoes) Create(ctx context.Context, in RegistrarInput) (*Plantacao, error) {
	if m.falhar != nil {
		return nil, m.falhar
	}
	p := Plantacao{
		ID: uuid.New(), CompraID: in.CompraID, InsumoID: in.InsumoID, InsumoNome: in.InsumoNome,
		QuantidadePlantada: in.QuantidadePlantada, DataPlantio: in.DataPlantio,
		CooperadoUID: in.CooperadoUID, CooperadoNome: in.CooperadoNome, FazendaID: in.FazendaID,
	}
	m.plantacoes[p.ID] = p
	return &p, nil
}

func (m *memPlantacoes) GetByID(ctx context.Context, id uuid.UUID) (*Plantacao, error) {
	p, ok := m.plantacoes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *memPlantacoes) ListByFazenda(ctx context.Context, fazendaID uuid.UUID) ([]Plantacao, error) {
	out := []Plantacao{}
	for _, p := range m.plantacoes {
		if p.FazendaID == fazendaID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPlantacoes) MarcarColhida(ctx context.Context, id uuid.UUID, data time.Time) (*Plantacao, error) {
	p, ok := m.plantacoes[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Colhida {
		return nil, ErrJaColhida
	}
	p.Colhida = true
	p.DataColheita = &data
	m.plantacoes[id] = p
	return &p, nil
}

func (m *memPlantacoes) DesmarcarColhida(ctx context.Context, id uuid.UUID) error {
	p, ok := m.plantacoes[id]
	if !ok {
		return ErrNotFound
	}
	p.Colhida = false
	p.DataColheita = nil
	m.plantacoes[id] = p
	return nil
}

type cenario struct {
	svc        *Service
	compras    *memCompras
	plantacoes *memPlantacoes
	compraID   uuid.UUID
	fazendaID  uuid.UUID
	cooperado  uuid.UUID
	insumoID   uuid.UUID
}

func novoCenario(comprada float64) *cenario {
	c := &cenario{
		compraID:  uuid.New(),
		fazendaID: uuid.New(),
		cooperado: uuid.New(),
		insumoID:  uuid.New(),
	}
	c.compras = &memCompras{compras: map[uuid.UUID]insumo.Compra{
		c.compraID: {
			ID:     c.compraID,
			Versao: 1,
			Status: insumo.Pendente,
			Itens: []insumo.ItemCompra{{
				InsumoID: c.insumoID, InsumoNome: "Milho", UnidadeMedida: insumo.Quilograma,
				QuantidadeComprada: comprada, FazendaID: c.fazendaID, CooperadoUID: c.cooperado,
			}},
		},
	}}
	c.plantacoes = &memPlantacoes{plantacoes: map[uuid.UUID]Plantacao{}}
	c.svc = NewService(c.plantacoes, c.compras, nil)
	return c
}

func (c *cenario) sessao() sessao.Sessao {
	nasc := time.Date(1980, 2, 2, 0, 0, 0, 0, time.UTC)
	return sessao.Anonima().Autenticar(sessao.Perfil{
		UID: c.cooperado, Nome: "Ana", CPF: "52998224725", DataNascimento: &nasc,
		Papel: papel.Cooperado, FazendaID: &c.fazendaID,
	})
}

func (c *cenario) usada(t *testing.T) float64 {
	t.Helper()
	compra, err := c.compras.GetCompra(context.Background(), c.compraID)
	require.NoError(t, err)
	return compra.Itens[0].QuantidadeUsada
}

func TestPlantarConsomeItem(t *testing.T) {
	c := novoCenario(100)

	p, err := c.svc.Plantar(context.Background(), c.sessao(), PlantarInput{CompraID: c.compraID, Quantidade: 40})
	require.NoError(t, err)
	assert.False(t, p.Colhida)
	assert.Equal(t, "Milho", p.InsumoNome)
	assert.Equal(t, c.insumoID, p.InsumoID)
	assert.Equal(t, "Ana", p.CooperadoNome)
	assert.Equal(t, 40.0, c.usada(t))
}

func TestPlantarAcimaDoSaldoRejeitado(t *testing.T) {
	c := novoCenario(100)

	_, err := c.svc.Plantar(context.Background(), c.sessao(), PlantarInput{CompraID: c.compraID, Quantidade: 70})
	require.NoError(t, err)

	_, err = c.svc.Plantar(context.Background(), c.sessao(), PlantarInput{CompraID: c.compraID, Quantidade: 31})
	assert.ErrorIs(t, err, ErrQuantidadeExcedida)
	assert.Equal(t, 70.0, c.usada(t))
	assert.Len(t, c.plantacoes.plantacoes, 1)
}

func TestPlantarDevolveSaldoQuandoPlantacaoFalha(t *testing.T) {
	c := novoCenario(100)
	c.plantacoes.falhar = errors.New("banco fora")

	_, err := c.svc.Plantar(context.Background(), c.sessao(), PlantarInput{CompraID: c.compraID, Quantidade: 25})
	require.Error(t, err)
	assert.Zero(t, c.usada(t))
}

// Dois plantios lendo a mesma versão: o segundo a gravar perde o CAS, relê
// e reaplica o incremento, então nenhum incremento se perde.
func TestIncrementosConcorrentesNaoSePerdem(t *testing.T) {
	c := novoCenario(100)
	ctx := context.Background()

	c.compras.antesGravar = func() {
		_, err := c.svc.AtualizarQuantidadeUsada(ctx, c.compraID, c.fazendaID, c.cooperado, uuid.Nil, 30)
		require.NoError(t, err)
	}

	item, err := c.svc.AtualizarQuantidadeUsada(ctx, c.compraID, c.fazendaID, c.cooperado, uuid.Nil, 40)
	require.NoError(t, err)
	assert.Equal(t, 70.0, item.QuantidadeUsada)
	assert.Equal(t, 70.0, c.usada(t))
	assert.Equal(t, 3, c.compras.gravacoes)
}

func TestIncrementosParalelos(t *testing.T) {
	c := novoCenario(1000)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	aplicados := 0.0
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.svc.AtualizarQuantidadeUsada(ctx, c.compraID, c.fazendaID, c.cooperado, uuid.Nil, 10); err == nil {
				mu.Lock()
				aplicados += 10
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, aplicados, c.usada(t))
}

func TestConflitoPersistenteDesiste(t *testing.T) {
	c := novoCenario(100)
	c.compras.sempreFalha = true

	_, err := c.svc.AtualizarQuantidadeUsada(context.Background(), c.compraID, c.fazendaID, c.cooperado, uuid.Nil, 10)
	assert.ErrorIs(t, err, ErrConflito)
	assert.Equal(t, maxTentativas, c.compras.gravacoes)
}

func TestLocalizarItemPorCooperado(t *testing.T) {
	cooperado := uuid.New()
	itens := []insumo.ItemCompra{
		{FazendaID: uuid.New(), CooperadoUID: uuid.New()},
		{FazendaID: uuid.New(), CooperadoUID: cooperado},
	}
	assert.Equal(t, 1, localizarItem(itens, uuid.New(), cooperado, uuid.Nil))
	assert.Equal(t, 0, localizarItem(itens, itens[0].FazendaID, cooperado, uuid.Nil))
	assert.Equal(t, -1, localizarItem(itens, uuid.New(), uuid.New(), uuid.Nil))
}

func TestPlantarSemItemDaFazenda(t *testing.T) {
	c := novoCenario(100)
	outra := uuid.New()
	nasc := time.Date(1980, 2, 2, 0, 0, 0, 0, time.UTC)
	sess := sessao.Anonima().Autenticar(sessao.Perfil{
		UID: uuid.New(), CPF: "52998224725", DataNascimento: &nasc, Papel: papel.Cooperado, FazendaID: &outra,
	})

	_, err := c.svc.Plantar(context.Background(), sess, PlantarInput{CompraID: c.compraID, Quantidade: 1})
	assert.ErrorIs(t, err, ErrItemNaoEncontrado)
}

func TestMarcarColhidaUmaVez(t *testing.T) {
	c := novoCenario(100)
	p, err := c.svc.Plantar(context.Background(), c.sessao(), PlantarInput{CompraID: c.compraID, Quantidade: 10})
	require.NoError(t, err)

	colhida, err := c.svc.MarcarColhida(context.Background(), p.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, colhida.Colhida)
	require.NotNil(t, colhida.DataColheita)

	_, err = c.svc.MarcarColhida(context.Background(), p.ID, time.Now())
	assert.ErrorIs(t, err, ErrJaColhida)

	require.NoError(t, c.svc.DesmarcarColhida(context.Background(), p.ID))
	got, err := c.svc.Obter(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, got.Colhida)
	assert.Nil(t, got.DataColheita)
}
