package colheita

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coopagro/gestao/internal/armazenamento"
	"github.com/coopagro/gestao/internal/insumo"
	"github.com/coopagro/gestao/internal/metrics"
	"github.com/coopagro/gestao/internal/plantacao"
	"github.com/coopagro/gestao/internal/sessao"
	"github.com/coopagro/gestao/internal/util"
)

const compensacaoTimeout = 5 * time.Second

type ColheitaRepository interface {
	Create(ctx context.Context, p ProdutoColhido) (*ProdutoColhido, error)
	ListByFazenda(ctx context.Context, fazendaID uuid.UUID) ([]ProdutoColhido, error)
}

type Plantacoes interface {
	Obter(ctx context.Context, id uuid.UUID) (*plantacao.Plantacao, error)
	MarcarColhida(ctx context.Context, id uuid.UUID, data time.Time) (*plantacao.Plantacao, error)
	DesmarcarColhida(ctx context.Context, id uuid.UUID) error
}

type Armazenamento interface {
	ObterLocal(ctx context.Context, id uuid.UUID) (*armazenamento.LocalArmazenamento, error)
	RegistrarEntrada(ctx context.Context, localID uuid.UUID, c armazenamento.Carga) (*armazenamento.Entrada, error)
	EstornarEntrada(ctx context.Context, ocupacaoID uuid.UUID) (*armazenamento.LocalArmazenamento, error)
}

type Insumos interface {
	ObterInsumo(ctx context.Context, id uuid.UUID) (*insumo.Insumo, error)
}

type Fazendas interface {
	Nome(ctx context.Context, id uuid.UUID) (string, error)
}

// Deps reúne os colaboradores do fluxo de colheita.
type Deps struct {
	Repo          ColheitaRepository
	Plantacoes    Plantacoes
	Armazenamento Armazenamento
	Insumos       Insumos
	Fazendas      Fazendas
	Metrics       *metrics.Metricas
}

// Service executa a transição PLANTADA → COLHIDA como uma saga:
// (a) entrada no local, (b) plantação marcada, (c) produto colhido gravado.
// Falha em (b) desfaz (a); falha em (c) desfaz (b) e depois (a).
type Service struct {
	repo          ColheitaRepository
	plantacoes    Plantacoes
	armazenamento Armazenamento
	insumos       Insumos
	fazendas      Fazendas
	metrics       *metrics.Metricas
	now           func() time.Time
	log           zerolog.Logger
}

func NewService(d Deps) *Service {
	return &Service{
		repo:          d.Repo,
		plantacoes:    d.Plantacoes,
		armazenamento: d.Armazenamento,
		insumos:       d.Insumos,
		fazendas:      d.Fazendas,
		metrics:       d.Metrics,
		now:           util.Now,
		log:           log.With().Str("component", "colheita").Logger(),
	}
}

// Colher registra a colheita da plantação no local escolhido.
func (s *Service) Colher(ctx context.Context, sess sessao.Sessao, in ColherInput) (*ProdutoColhido, error) {
	u, ok := sess.Usuario()
	if !ok {
		return nil, sessao.ErrPerfilIncompleto
	}
	if u.FazendaID == nil {
		return nil, ErrSemFazenda
	}
	if err := util.RequirePositive(in.Quantidade, "quantidade"); err != nil {
		return nil, err
	}
	fazendaID := *u.FazendaID

	p, err := s.plantacoes.Obter(ctx, in.PlantacaoID)
	if err != nil {
		return nil, err
	}
	if p.FazendaID != fazendaID {
		return nil, ErrOutraFazenda
	}
	if p.Colhida {
		return nil, plantacao.ErrJaColhida
	}

	ins, err := s.insumos.ObterInsumo(ctx, p.InsumoID)
	if err != nil {
		return nil, err
	}
	produtoNome := strings.TrimSpace(in.ProdutoNome)
	if produtoNome == "" {
		produtoNome = p.InsumoNome
	}
	fazendaNome := u.FazendaNome
	if nome, err := s.fazendas.Nome(ctx, fazendaID); err == nil {
		fazendaNome = nome
	}

	carga := armazenamento.Carga{
		FazendaID:     fazendaID,
		FazendaNome:   fazendaNome,
		ProdutoNome:   produtoNome,
		UnidadeMedida: ins.UnidadeMedida,
		InsumoID:      &p.InsumoID,
		Quantidade:    in.Quantidade,
	}

	local, err := s.armazenamento.ObterLocal(ctx, in.LocalID)
	if err != nil {
		return nil, err
	}
	if err := local.Aceita(carga); err != nil {
		return nil, err
	}

	data := s.now()
	if in.DataColheita != nil && !in.DataColheita.IsZero() {
		data = *in.DataColheita
	}

	// (a)
	entrada, err := s.armazenamento.RegistrarEntrada(ctx, local.ID, carga)
	if err != nil {
		return nil, err
	}
	estornar := func(ctx context.Context) error {
		_, err := s.armazenamento.EstornarEntrada(ctx, entrada.Ocupacao.ID)
		return err
	}

	// (b)
	if _, err := s.plantacoes.MarcarColhida(ctx, p.ID, data); err != nil {
		s.compensar(ctx, p.ID, estornar)
		return nil, err
	}

	// (c)
	ocupacaoID := entrada.Ocupacao.ID
	colhido, err := s.repo.Create(ctx, ProdutoColhido{
		ID:            uuid.New(),
		PlantacaoID:   p.ID,
		InsumoID:      p.InsumoID,
		ProdutoNome:   produtoNome,
		UnidadeMedida: ins.UnidadeMedida,
		Quantidade:    in.Quantidade,
		LocalID:       local.ID,
		LocalNome:     local.Nome,
		OcupacaoID:    &ocupacaoID,
		FazendaID:     fazendaID,
		FazendaNome:   fazendaNome,
		DataColheita:  data,
	})
	if err != nil {
		s.compensar(ctx, p.ID,
			func(ctx context.Context) error { return s.plantacoes.DesmarcarColhida(ctx, p.ID) },
			estornar,
		)
		return nil, err
	}

	s.metrics.Colheita(in.Quantidade)
	s.log.Info().
		Str("plantacao_id", p.ID.String()).
		Str("local_id", local.ID.String()).
		Float64("quantidade", in.Quantidade).
		Float64("capacidade_utilizada", entrada.Local.CapacidadeUtilizada).
		Msg("colheita registrada")
	return colhido, nil
}

// compensar executa os desfazimentos em ordem, mesmo que a requisição já tenha sido cancelada.
func (s *Service) compensar(ctx context.Context, plantacaoID uuid.UUID, passos ...func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensacaoTimeout)
	defer cancel()

	for i, passo := range passos {
		err := passo(ctx)
		s.metrics.Compensacao("colheita", err == nil)
		if err != nil {
			s.log.Error().Err(err).Str("plantacao_id", plantacaoID.String()).Int("passo", i).Msg("falha ao compensar colheita")
		}
	}
}

func (s *Service) ListarPorFazenda(ctx context.Context, fazendaID uuid.UUID) ([]ProdutoColhido, error) {
	return s.repo.ListByFazenda(ctx, fazendaID)
}
