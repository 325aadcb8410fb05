package colheita

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopagro/gestao/internal/armazenamento"
	"github.com/coopagro/gestao/internal/insumo"
	"github.com/coopagro/gestao/internal/papel"
	"github.com/coopagro/gestao/internal/plantacao"
	"github.com/coopagro/gestao/internal/sessao"
)

type fakeRepo struct {
	colhidos []ProdutoColhido
	falhar   error
}

func (f *fakeRepo) Create(ctx context.Context, p ProdutoColhido) (*ProdutoColhido, error) {
	if f.falhar != nil {
		return nil, f.falhar
	}
	f.colhidos = append(f.colhidos, p)
	return &p, nil
}

func (f *fakeRepo) ListByFazenda(ctx context.Context, fazendaID uuid.UUID) ([]ProdutoColhido, error) {
	return f.colhidos, nil
}

type fakePlantacoes struct {
	plantacoes map[uuid.UUID]plantacao.Plantacao
	falhar     error
}

func (f *fakePlantacoes) Obter(ctx context.Context, id uuid.UUID) (*plantacao.Plantacao, error) {
	p, ok := f.plantacoes[id]
	if !ok {
		return nil, plantacao.ErrNotFound
	}
	return &p, nil
}

func (f *fakePlantacoes) MarcarColhida(ctx context.Context, id uuid.UUID, data time.Time) (*plantacao.Plantacao, error) {
	if f.falhar != nil {
		return nil, f.falhar
	}
	p := f.plantacoes[id]
	if p.Colhida {
		return nil, plantacao.ErrJaColhida
	}
	p.Colhida = true
	p.DataColheita = &data
	f.plantacoes[id] = p
	return &p, nil
}

func (f *fakePlantacoes) DesmarcarColhida(ctx context.Context, id uuid.UUID) error {
	p := f.plantacoes[id]
	p.Colhida = false
	p.DataColheita = nil
	f.plantacoes[id] = p
	return nil
}

type fakeArmazenamento struct {
	locais    map[uuid.UUID]armazenamento.LocalArmazenamento
	ocupacoes map[uuid.UUID]armazenamento.Ocupacao
}

func (f *fakeArmazenamento) ObterLocal(ctx context.Context, id uuid.UUID) (*armazenamento.LocalArmazenamento, error) {
	l, ok := f.locais[id]
	if !ok {
		return nil, armazenamento.ErrLocalNaoEncontrado
	}
	return &l, nil
}

func (f *fakeArmazenamento) RegistrarEntrada(ctx context.Context, localID uuid.UUID, c armazenamento.Carga) (*armazenamento.Entrada, error) {
	l := f.locais[localID]
	if err := l.Aceita(c); err != nil {
		return nil, err
	}
	l.CapacidadeUtilizada += c.Quantidade
	l.FazendaID = &c.FazendaID
	l.FazendaNome = c.FazendaNome
	l.ProdutoNome = c.ProdutoNome
	f.locais[localID] = l
	o := armazenamento.Ocupacao{ID: uuid.New(), LocalID: localID, FazendaID: c.FazendaID, Quantidade: c.Quantidade}
	f.ocupacoes[o.ID] = o
	return &armazenamento.Entrada{Local: l, Ocupacao: o}, nil
}

func (f *fakeArmazenamento) EstornarEntrada(ctx context.Context, ocupacaoID uuid.UUID) (*armazenamento.LocalArmazenamento, error) {
	o, ok := f.ocupacoes[ocupacaoID]
	if !ok {
		return nil, armazenamento.ErrOcupacaoNaoEncontrada
	}
	delete(f.ocupacoes, ocupacaoID)
	l := f.locais[o.LocalID]
	l.CapacidadeUtilizada -= o.Quantidade
	if l.CapacidadeUtilizada <= 0 {
		l.CapacidadeUtilizada = 0
		l.FazendaID, l.FazendaNome, l.ProdutoNome = nil, "", ""
	}
	f.locais[o.LocalID] = l
	return &l, nil
}

type fakeInsumos map[uuid.UUID]insumo.Insumo

func (f fakeInsumos) ObterInsumo(ctx context.Context, id uuid.UUID) (*insumo.Insumo, error) {
	i, ok := f[id]
	if !ok {
		return nil, insumo.ErrNotFound
	}
	return &i, nil
}

type fakeFazendas struct{}

func (fakeFazendas) Nome(ctx context.Context, id uuid.UUID) (string, error) {
	return "Fazenda Sol", nil
}

type cenario struct {
	svc         *Service
	repo        *fakeRepo
	plantacoes  *fakePlantacoes
	armazem     *fakeArmazenamento
	fazendaID   uuid.UUID
	plantacaoID uuid.UUID
	localID     uuid.UUID
}

func novoCenario(maxima float64) *cenario {
	c := &cenario{fazendaID: uuid.New(), plantacaoID: uuid.New(), localID: uuid.New()}
	insumoID := uuid.New()
	c.repo = &fakeRepo{}
	c.plantacoes = &fakePlantacoes{plantacoes: map[uuid.UUID]plantacao.Plantacao{
		c.plantacaoID: {ID: c.plantacaoID, InsumoID: insumoID, InsumoNome: "Milho", QuantidadePlantada: 40, FazendaID: c.fazendaID},
	}}
	c.armazem = &fakeArmazenamento{
		locais: map[uuid.UUID]armazenamento.LocalArmazenamento{
			c.localID: {ID: c.localID, Nome: "Silo 1", TipoArmazenamento: insumo.Quilograma, CapacidadeMaxima: maxima},
		},
		ocupacoes: map[uuid.UUID]armazenamento.Ocupacao{},
	}
	c.svc = NewService(Deps{
		Repo:          c.repo,
		Plantacoes:    c.plantacoes,
		Armazenamento: c.armazem,
		Insumos:       fakeInsumos{insumoID: {ID: insumoID, Nome: "Milho", UnidadeMedida: insumo.Quilograma}},
		Fazendas:      fakeFazendas{},
	})
	return c
}

func (c *cenario) sessao() sessao.Sessao {
	nasc := time.Date(1980, 2, 2, 0, 0, 0, 0, time.UTC)
	return sessao.Anonima().Autenticar(sessao.Perfil{
		UID: uuid.New(), CPF: "52998224725", DataNascimento: &nasc, Papel: papel.Cooperado, FazendaID: &c.fazendaID,
	})
}

func (c *cenario) local() armazenamento.LocalArmazenamento {
	return c.armazem.locais[c.localID]
}

func TestColherRegistraTudo(t *testing.T) {
	c := novoCenario(1000)

	colhido, err := c.svc.Colher(context.Background(), c.sessao(), ColherInput{PlantacaoID: c.plantacaoID, LocalID: c.localID, Quantidade: 40})
	require.NoError(t, err)
	assert.Equal(t, "Milho", colhido.ProdutoNome)
	assert.Equal(t, "Fazenda Sol", colhido.FazendaNome)
	assert.Equal(t, "Silo 1", colhido.LocalNome)
	require.NotNil(t, colhido.OcupacaoID)

	assert.Equal(t, 40.0, c.local().CapacidadeUtilizada)
	assert.Equal(t, "Milho", c.local().ProdutoNome)
	assert.True(t, c.plantacoes.plantacoes[c.plantacaoID].Colhida)
	assert.Len(t, c.repo.colhidos, 1)

	_, err = c.svc.Colher(context.Background(), c.sessao(), ColherInput{PlantacaoID: c.plantacaoID, LocalID: c.localID, Quantidade: 1})
	assert.ErrorIs(t, err, plantacao.ErrJaColhida)
}

func TestColherAcimaDaCapacidade(t *testing.T) {
	c := novoCenario(30)

	_, err := c.svc.Colher(context.Background(), c.sessao(), ColherInput{PlantacaoID: c.plantacaoID, LocalID: c.localID, Quantidade: 50})
	require.ErrorIs(t, err, armazenamento.ErrCapacidadeExcedida)
	assert.Zero(t, c.local().CapacidadeUtilizada)
	assert.False(t, c.plantacoes.plantacoes[c.plantacaoID].Colhida)
	assert.Empty(t, c.repo.colhidos)
}

func TestColherTipoIncompativel(t *testing.T) {
	c := novoCenario(100)
	l := c.local()
	l.TipoArmazenamento = insumo.Litro
	c.armazem.locais[c.localID] = l

	_, err := c.svc.Colher(context.Background(), c.sessao(), ColherInput{PlantacaoID: c.plantacaoID, LocalID: c.localID, Quantidade: 10})
	assert.ErrorIs(t, err, armazenamento.ErrTipoIncompativel)
}

func TestColherCompensaQuandoMarcacaoFalha(t *testing.T) {
	c := novoCenario(100)
	c.plantacoes.falhar = errors.New("timeout")

	_, err := c.svc.Colher(context.Background(), c.sessao(), ColherInput{PlantacaoID: c.plantacaoID, LocalID: c.localID, Quantidade: 10})
	require.Error(t, err)
	assert.Zero(t, c.local().CapacidadeUtilizada)
	assert.Nil(t, c.local().FazendaID)
	assert.Empty(t, c.armazem.ocupacoes)
}

func TestColherCompensaQuandoRegistroFalha(t *testing.T) {
	c := novoCenario(100)
	c.repo.falhar = errors.New("timeout")

	_, err := c.svc.Colher(context.Background(), c.sessao(), ColherInput{PlantacaoID: c.plantacaoID, LocalID: c.localID, Quantidade: 10})
	require.Error(t, err)
	assert.Zero(t, c.local().CapacidadeUtilizada)
	assert.False(t, c.plantacoes.plantacoes[c.plantacaoID].Colhida)
	assert.Nil(t, c.plantacoes.plantacoes[c.plantacaoID].DataColheita)
}

func TestColherPlantacaoDeOutraFazenda(t *testing.T) {
	c := novoCenario(100)
	outra := uuid.New()
	nasc := time.Date(1980, 2, 2, 0, 0, 0, 0, time.UTC)
	sess := sessao.Anonima().Autenticar(sessao.Perfil{UID: uuid.New(), CPF: "52998224725", DataNascimento: &nasc, Papel: papel.Cooperado, FazendaID: &outra})

	_, err := c.svc.Colher(context.Background(), sess, ColherInput{PlantacaoID: c.plantacaoID, LocalID: c.localID, Quantidade: 10})
	assert.ErrorIs(t, err, ErrOutraFazenda)
}
