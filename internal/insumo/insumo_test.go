package insumo

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopagro/gestao/internal/papel"
	"github.com/coopagro/gestao/internal/sessao"
	"github.com/coopagro/gestao/internal/util"
)

type stubRepo struct {
	insumos map[uuid.UUID]Insumo
	compras map[uuid.UUID]Compra
	filtros []FiltroCompras
}

func newStubRepo() *stubRepo {
	return &stubRepo{insumos: map[uuid.UUID]Insumo{}, compras: map[uuid.UUID]Compra{}}
}

func (s *stubRepo) CreateInsumo(ctx context.Context, input CriarInsumoInput) (*Insumo, error) {
	i := Insumo{ID: uuid.New(), Nome: input.Nome, Tipo: input.Tipo, UnidadeMedida: input.UnidadeMedida, ValorPorUnidade: input.ValorPorUnidade}
	s.insumos[i.ID] = i
	return &i, nil
}

func (s *stubRepo) UpdateInsumo(ctx context.Context, id uuid.UUID, input AtualizarInsumoInput) (*Insumo, error) {
	i, ok := s.insumos[id]
	if !ok {
		return nil, ErrNotFound
	}
	if input.Nome != nil {
		i.Nome = *input.Nome
	}
	if input.ValorPorUnidade != nil {
		i.ValorPorUnidade = *input.ValorPorUnidade
	}
	s.insumos[id] = i
	return &i, nil
}

func (s *stubRepo) DeleteInsumo(ctx context.Context, id uuid.UUID) error {
	delete(s.insumos, id)
	return nil
}

func (s *stubRepo) GetInsumo(ctx context.Context, id uuid.UUID) (*Insumo, error) {
	i, ok := s.insumos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &i, nil
}

func (s *stubRepo) ListInsumos(ctx context.Context) ([]Insumo, error) {
	out := []Insumo{}
	for _, i := range s.insumos {
		out = append(out, i)
	}
	return out, nil
}

func (s *stubRepo) CreateCompra(ctx context.Context, c Compra) (*Compra, error) {
	c.Versao = 1
	s.compras[c.ID] = c
	return &c, nil
}

func (s *stubRepo) GetCompra(ctx context.Context, id uuid.UUID) (*Compra, error) {
	c, ok := s.compras[id]
	if !ok {
		return nil, ErrCompraNaoEncontrada
	}
	return &c, nil
}

func (s *stubRepo) ListCompras(ctx context.Context, filtro FiltroCompras) ([]Compra, error) {
	s.filtros = append(s.filtros, filtro)
	out := []Compra{}
	for _, c := range s.compras {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status StatusCompra) (*Compra, error) {
	c, ok := s.compras[id]
	if !ok {
		return nil, ErrCompraNaoEncontrada
	}
	c.Status = status
	s.compras[id] = c
	return &c, nil
}

func TestCriarInsumoValidacao(t *testing.T) {
	svc := NewService(newStubRepo())

	cases := []struct {
		name  string
		input CriarInsumoInput
		campo string
	}{
		{"nome curto", CriarInsumoInput{Nome: "M", Tipo: Semente, UnidadeMedida: Quilograma}, "nome"},
		{"tipo inválido", CriarInsumoInput{Nome: "Milho", Tipo: "ADUBO", UnidadeMedida: Quilograma}, "tipo"},
		{"unidade inválida", CriarInsumoInput{Nome: "Milho", Tipo: Semente, UnidadeMedida: "ton"}, "unidadeMedida"},
		{"valor negativo", CriarInsumoInput{Nome: "Milho", Tipo: Semente, UnidadeMedida: Quilograma, ValorPorUnidade: decimal.NewFromInt(-1)}, "valorPorUnidade"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CriarInsumo(context.Background(), tc.input)
			var verr *util.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.campo, verr.Campo)
		})
	}
}

func TestRegistrarCompraCalculaTotais(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo)
	svc.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }

	milho, err := svc.CriarInsumo(context.Background(), CriarInsumoInput{
		Nome: "Milho", Tipo: Semente, UnidadeMedida: Quilograma, ValorPorUnidade: decimal.RequireFromString("2.35"),
	})
	require.NoError(t, err)
	ureia, err := svc.CriarInsumo(context.Background(), CriarInsumoInput{
		Nome: "Ureia", Tipo: Fertilizante, UnidadeMedida: Saca, ValorPorUnidade: decimal.RequireFromString("0.10"),
	})
	require.NoError(t, err)

	fazenda := uuid.New()
	cooperado := uuid.New()
	c, err := svc.RegistrarCompra(context.Background(), RegistrarCompraInput{Itens: []ItemCompraInput{
		{InsumoID: milho.ID, Quantidade: 100, FazendaID: fazenda, CooperadoUID: cooperado, CooperadoNome: "Ana"},
		{InsumoID: ureia.ID, Quantidade: 3, FazendaID: fazenda, CooperadoUID: cooperado, CooperadoNome: "Ana"},
	}})
	require.NoError(t, err)

	assert.Equal(t, Pendente, c.Status)
	assert.Equal(t, 1, c.Versao)
	require.Len(t, c.Itens, 2)
	assert.Equal(t, "235", c.Itens[0].ValorTotal.String())
	assert.Equal(t, "0.3", c.Itens[1].ValorTotal.String())
	assert.True(t, c.ValorTotal.Equal(decimal.RequireFromString("235.30")))
	assert.Zero(t, c.Itens[0].QuantidadeUsada)
	assert.Equal(t, "Milho", c.Itens[0].InsumoNome)
	assert.Equal(t, 2024, c.DataCompra.Year())
}

func TestRegistrarCompraRejeitaItens(t *testing.T) {
	svc := NewService(newStubRepo())

	_, err := svc.RegistrarCompra(context.Background(), RegistrarCompraInput{})
	var verr *util.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "itens", verr.Campo)

	_, err = svc.RegistrarCompra(context.Background(), RegistrarCompraInput{Itens: []ItemCompraInput{
		{InsumoID: uuid.New(), Quantidade: 0, FazendaID: uuid.New(), CooperadoUID: uuid.New()},
	}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "itens[0].quantidade", verr.Campo)

	_, err = svc.RegistrarCompra(context.Background(), RegistrarCompraInput{Itens: []ItemCompraInput{
		{InsumoID: uuid.New(), Quantidade: 5, FazendaID: uuid.New(), CooperadoUID: uuid.New()},
	}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAtualizarStatus(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo)
	id := uuid.New()
	repo.compras[id] = Compra{ID: id, Status: Pendente}

	_, err := svc.AtualizarStatus(context.Background(), id, "PAGA")
	var verr *util.ValidationError
	require.ErrorAs(t, err, &verr)

	c, err := svc.AtualizarStatus(context.Background(), id, Concluida)
	require.NoError(t, err)
	assert.Equal(t, Concluida, c.Status)
}

func comSessao(r *http.Request, p papel.Papel, fazendaID *uuid.UUID) *http.Request {
	nasc := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	s := sessao.Anonima().Autenticar(sessao.Perfil{UID: uuid.New(), CPF: "52998224725", DataNascimento: &nasc, Papel: p, FazendaID: fazendaID})
	return r.WithContext(sessao.WithSessao(r.Context(), s))
}

func TestHandlerListaComprasDoCooperado(t *testing.T) {
	repo := newStubRepo()
	router := chi.NewRouter()
	NewHandler(NewService(repo)).RegisterRoutes(router)

	fazenda := uuid.New()
	req := comSessao(httptest.NewRequest(http.MethodGet, "/compras?fazendaId="+uuid.NewString(), nil), papel.Cooperado, &fazenda)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, repo.filtros, 1)
	require.NotNil(t, repo.filtros[0].FazendaID)
	assert.Equal(t, fazenda, *repo.filtros[0].FazendaID)
}

func TestHandlerRegistrarCompraExigeCooperativa(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo)
	router := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(router)

	milho, err := svc.CriarInsumo(context.Background(), CriarInsumoInput{
		Nome: "Milho", Tipo: Semente, UnidadeMedida: Quilograma, ValorPorUnidade: decimal.NewFromInt(2),
	})
	require.NoError(t, err)

	body, _ := json.Marshal(RegistrarCompraInput{Itens: []ItemCompraInput{
		{InsumoID: milho.ID, Quantidade: 10, FazendaID: uuid.New(), CooperadoUID: uuid.New(), CooperadoNome: "Ana"},
	}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, comSessao(httptest.NewRequest(http.MethodPost, "/compras", bytes.NewReader(body)), papel.Cooperado, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, comSessao(httptest.NewRequest(http.MethodPost, "/compras", bytes.NewReader(body)), papel.Cooperativa, nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data Compra `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Data.ValorTotal.Equal(decimal.NewFromInt(20)))
}
