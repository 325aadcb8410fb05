package plantacao

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coopagro/gestao/internal/insumo"
	"github.com/coopagro/gestao/internal/metrics"
	"github.com/coopagro/gestao/internal/sessao"
	"github.com/coopagro/gestao/internal/util"
)

// maxTentativas limita as releituras após perder a corrida de versão.
const maxTentativas = 3

type PlantacaoRepository interface {
	Create(ctx context.Context, in RegistrarInput) (*Plantacao, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Plantacao, error)
	ListByFazenda(ctx context.Context, fazendaID uuid.UUID) ([]Plantacao, error)
	MarcarColhida(ctx context.Context, id uuid.UUID, data time.Time) (*Plantacao, error)
	DesmarcarColhida(ctx context.Context, id uuid.UUID) error
}

// CompraStore é a parte do repositório de insumos usada no consumo de itens.
type CompraStore interface {
	GetCompra(ctx context.Context, id uuid.UUID) (*insumo.Compra, error)
	AtualizarItens(ctx context.Context, id uuid.UUID, versao int, itens []insumo.ItemCompra) (*insumo.Compra, error)
}

// Service liga compras a plantações.
type Service struct {
	repo    PlantacaoRepository
	compras CompraStore
	metrics *metrics.Metricas
	now     func() time.Time
}

func NewService(repo PlantacaoRepository, compras CompraStore, m *metrics.Metricas) *Service {
	return &Service{repo: repo, compras: compras, metrics: m, now: util.Now}
}

// RegistrarPlantacao cria a plantação ainda não colhida.
func (s *Service) RegistrarPlantacao(ctx context.Context, in RegistrarInput) (*Plantacao, error) {
	if in.CompraID == uuid.Nil {
		return nil, &util.ValidationError{Campo: "compraId", Mensagem: "compra obrigatória"}
	}
	if in.FazendaID == uuid.Nil {
		return nil, &util.ValidationError{Campo: "fazendaId", Mensagem: "fazenda obrigatória"}
	}
	if err := util.RequirePositive(in.QuantidadePlantada, "quantidadePlantada"); err != nil {
		return nil, err
	}
	if in.DataPlantio.IsZero() {
		in.DataPlantio = s.now()
	}
	in.InsumoNome = strings.TrimSpace(in.InsumoNome)
	return s.repo.Create(ctx, in)
}

// AtualizarQuantidadeUsada soma delta ao quantidadeUsada do item da fazenda
// (ou, na falta, do cooperado). A escrita é um compare-and-swap na versão da
// compra: quem perde a corrida relê e tenta de novo, até maxTentativas.
func (s *Service) AtualizarQuantidadeUsada(ctx context.Context, compraID, fazendaID, cooperadoUID, insumoID uuid.UUID, delta float64) (*insumo.ItemCompra, error) {
	for tentativa := 1; tentativa <= maxTentativas; tentativa++ {
		compra, err := s.compras.GetCompra(ctx, compraID)
		if err != nil {
			return nil, err
		}

		idx := localizarItem(compra.Itens, fazendaID, cooperadoUID, insumoID)
		if idx < 0 {
			return nil, ErrItemNaoEncontrado
		}

		itens := make([]insumo.ItemCompra, len(compra.Itens))
		copy(itens, compra.Itens)
		usada := itens[idx].QuantidadeUsada + delta
		if usada > itens[idx].QuantidadeComprada {
			return nil, fmt.Errorf("%w: disponível %.2f", ErrQuantidadeExcedida, itens[idx].Disponivel())
		}
		if usada < 0 {
			usada = 0
		}
		itens[idx].QuantidadeUsada = usada

		atualizada, err := s.compras.AtualizarItens(ctx, compraID, compra.Versao, itens)
		if errors.Is(err, insumo.ErrVersaoDesatualizada) {
			s.metrics.Conflito()
			log.Debug().Str("compra_id", compraID.String()).Int("tentativa", tentativa).Msg("conflito de versão na compra")
			continue
		}
		if err != nil {
			return nil, err
		}
		item := atualizada.Itens[idx]
		return &item, nil
	}
	return nil, ErrConflito
}

func localizarItem(itens []insumo.ItemCompra, fazendaID, cooperadoUID, insumoID uuid.UUID) int {
	mesmoInsumo := func(i insumo.ItemCompra) bool {
		return insumoID == uuid.Nil || i.InsumoID == insumoID
	}
	for i, item := range itens {
		if fazendaID != uuid.Nil && item.FazendaID == fazendaID && mesmoInsumo(item) {
			return i
		}
	}
	for i, item := range itens {
		if cooperadoUID != uuid.Nil && item.CooperadoUID == cooperadoUID && mesmoInsumo(item) {
			return i
		}
	}
	return -1
}

// Plantar consome o saldo do item e cria a plantação; se a plantação não puder
// ser gravada, o consumo é devolvido.
func (s *Service) Plantar(ctx context.Context, sess sessao.Sessao, in PlantarInput) (*Plantacao, error) {
	u, ok := sess.Usuario()
	if !ok {
		return nil, sessao.ErrPerfilIncompleto
	}
	if u.FazendaID == nil {
		return nil, &util.ValidationError{Campo: "fazendaId", Mensagem: "perfil sem fazenda vinculada"}
	}
	if in.CompraID == uuid.Nil {
		return nil, &util.ValidationError{Campo: "compraId", Mensagem: "compra obrigatória"}
	}
	if err := util.RequirePositive(in.Quantidade, "quantidade"); err != nil {
		return nil, err
	}

	item, err := s.AtualizarQuantidadeUsada(ctx, in.CompraID, *u.FazendaID, u.UID, in.InsumoID, in.Quantidade)
	if err != nil {
		return nil, err
	}

	data := s.now()
	if in.DataPlantio != nil && !in.DataPlantio.IsZero() {
		data = *in.DataPlantio
	}
	p, err := s.RegistrarPlantacao(ctx, RegistrarInput{
		CompraID:           in.CompraID,
		InsumoID:           item.InsumoID,
		InsumoNome:         item.InsumoNome,
		QuantidadePlantada: in.Quantidade,
		DataPlantio:        data,
		CooperadoUID:       u.UID,
		CooperadoNome:      u.NomeCompleto(),
		FazendaID:          *u.FazendaID,
	})
	if err != nil {
		_, cerr := s.AtualizarQuantidadeUsada(context.WithoutCancel(ctx), in.CompraID, *u.FazendaID, u.UID, item.InsumoID, -in.Quantidade)
		s.metrics.Compensacao("plantio", cerr == nil)
		if cerr != nil {
			log.Error().Err(cerr).Str("compra_id", in.CompraID.String()).Float64("quantidade", in.Quantidade).Msg("falha ao devolver saldo do item da compra")
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) Obter(ctx context.Context, id uuid.UUID) (*Plantacao, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListarPorFazenda(ctx context.Context, fazendaID uuid.UUID) ([]Plantacao, error) {
	return s.repo.ListByFazenda(ctx, fazendaID)
}

// MarcarColhida executa a transição PLANTADA → COLHIDA.
func (s *Service) MarcarColhida(ctx context.Context, id uuid.UUID, data time.Time) (*Plantacao, error) {
	return s.repo.MarcarColhida(ctx, id, data)
}

// DesmarcarColhida é a compensação de MarcarColhida.
func (s *Service) DesmarcarColhida(ctx context.Context, id uuid.UUID) error {
	return s.repo.DesmarcarColhida(ctx, id)
}
