package armazenamento

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coopagro/gestao/internal/metrics"
	"github.com/coopagro/gestao/internal/util"
)

// LocalRepository descreve o armazenamento usado pelo serviço.
type LocalRepository interface {
	Create(ctx context.Context, input RegistrarLocalInput) (*LocalArmazenamento, error)
	Update(ctx context.Context, id uuid.UUID, input AtualizarLocalInput) (*LocalArmazenamento, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*LocalArmazenamento, error)
	List(ctx context.Context, fazendaID *uuid.UUID) ([]LocalArmazenamento, error)
	ListEmUso(ctx context.Context, fazendaID uuid.UUID) ([]LocalArmazenamento, error)
	ListCompativeis(ctx context.Context, f FiltroCompativeis) ([]LocalArmazenamento, error)
	RegistrarEntrada(ctx context.Context, localID uuid.UUID, c Carga) (*Entrada, error)
	EstornarEntrada(ctx context.Context, ocupacaoID uuid.UUID) (*LocalArmazenamento, error)
	RegistrarSaida(ctx context.Context, localID, fazendaID uuid.UUID, quantidade float64) (*Saida, error)
	RestaurarSaida(ctx context.Context, localID uuid.UUID, s Saida) (*LocalArmazenamento, error)
	Ocupacoes(ctx context.Context, localID uuid.UUID) ([]Ocupacao, error)
}

// Service controla a capacidade dos locais de armazenamento.
type Service struct {
	repo    LocalRepository
	metrics *metrics.Metricas
}

func NewService(repo LocalRepository, m *metrics.Metricas) *Service {
	return &Service{repo: repo, metrics: m}
}

// RegistrarLocal cria o local vazio.
func (s *Service) RegistrarLocal(ctx context.Context, input RegistrarLocalInput) (*LocalArmazenamento, error) {
	input.Nome = strings.TrimSpace(input.Nome)
	if err := util.RequireMinLen(input.Nome, "nome", 2); err != nil {
		return nil, err
	}
	if !input.TipoArmazenamento.Valida() {
		return nil, &util.ValidationError{Campo: "tipoArmazenamento", Mensagem: "tipo de armazenamento inválido"}
	}
	if input.CapacidadeMaxima < 1 {
		return nil, &util.ValidationError{Campo: "capacidadeMaxima", Mensagem: "capacidade máxima deve ser pelo menos 1"}
	}
	return s.repo.Create(ctx, input)
}

// AtualizarLocal aplica merge parcial e sempre carimba atualizado_em.
func (s *Service) AtualizarLocal(ctx context.Context, id uuid.UUID, input AtualizarLocalInput) (*LocalArmazenamento, error) {
	if input.Nome != nil {
		nome := strings.TrimSpace(*input.Nome)
		if err := util.RequireMinLen(nome, "nome", 2); err != nil {
			return nil, err
		}
		input.Nome = &nome
	}
	if input.TipoArmazenamento != nil && !input.TipoArmazenamento.Valida() {
		return nil, &util.ValidationError{Campo: "tipoArmazenamento", Mensagem: "tipo de armazenamento inválido"}
	}
	if input.CapacidadeMaxima != nil && *input.CapacidadeMaxima < 1 {
		return nil, &util.ValidationError{Campo: "capacidadeMaxima", Mensagem: "capacidade máxima deve ser pelo menos 1"}
	}
	return s.repo.Update(ctx, id, input)
}

// RemoverLocal só aceita locais vazios.
func (s *Service) RemoverLocal(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ObterLocal(ctx context.Context, id uuid.UUID) (*LocalArmazenamento, error) {
	return s.repo.GetByID(ctx, id)
}

// ListarLocais devolve todos os locais ou só os vinculados à fazenda.
func (s *Service) ListarLocais(ctx context.Context, fazendaID *uuid.UUID) ([]LocalArmazenamento, error) {
	return s.repo.List(ctx, fazendaID)
}

func (s *Service) ListarEmUso(ctx context.Context, fazendaID uuid.UUID) ([]LocalArmazenamento, error) {
	return s.repo.ListEmUso(ctx, fazendaID)
}

func (s *Service) ListarCompativeis(ctx context.Context, f FiltroCompativeis) ([]LocalArmazenamento, error) {
	if !f.Tipo.Valida() {
		return nil, &util.ValidationError{Campo: "tipo", Mensagem: "tipo de armazenamento inválido"}
	}
	return s.repo.ListCompativeis(ctx, f)
}

func (s *Service) Ocupacoes(ctx context.Context, localID uuid.UUID) ([]Ocupacao, error) {
	return s.repo.Ocupacoes(ctx, localID)
}

// RegistrarEntrada soma a carga ao local. Cargas que estourariam a capacidade
// são rejeitadas e a capacidade utilizada permanece como estava.
func (s *Service) RegistrarEntrada(ctx context.Context, localID uuid.UUID, c Carga) (*Entrada, error) {
	if err := util.RequirePositive(c.Quantidade, "quantidade"); err != nil {
		return nil, err
	}
	if c.FazendaID == uuid.Nil {
		return nil, &util.ValidationError{Campo: "fazendaId", Mensagem: "fazenda obrigatória"}
	}
	c.ProdutoNome = strings.TrimSpace(c.ProdutoNome)

	entrada, err := s.repo.RegistrarEntrada(ctx, localID, c)
	if err != nil {
		if motivo := motivoRejeicao(err); motivo != "" {
			s.metrics.Rejeicao(motivo)
			log.Info().Str("local_id", localID.String()).Float64("quantidade", c.Quantidade).Str("motivo", motivo).Msg("entrada rejeitada")
		}
		return nil, err
	}
	return entrada, nil
}

// EstornarEntrada é a compensação de RegistrarEntrada.
func (s *Service) EstornarEntrada(ctx context.Context, ocupacaoID uuid.UUID) (*LocalArmazenamento, error) {
	return s.repo.EstornarEntrada(ctx, ocupacaoID)
}

// RegistrarSaida retira a quantidade do local: usado vira max(0, usado-q) e,
// ao zerar, o vínculo com fazenda e produto é limpo.
func (s *Service) RegistrarSaida(ctx context.Context, localID, fazendaID uuid.UUID, quantidade float64) (*Saida, error) {
	if err := util.RequirePositive(quantidade, "quantidade"); err != nil {
		return nil, err
	}
	saida, err := s.repo.RegistrarSaida(ctx, localID, fazendaID, quantidade)
	if err != nil {
		if motivo := motivoRejeicao(err); motivo != "" {
			s.metrics.Rejeicao(motivo)
		}
		return nil, err
	}
	return saida, nil
}

// RestaurarSaida é a compensação de RegistrarSaida.
func (s *Service) RestaurarSaida(ctx context.Context, localID uuid.UUID, saida Saida) (*LocalArmazenamento, error) {
	return s.repo.RestaurarSaida(ctx, localID, saida)
}

func motivoRejeicao(err error) string {
	switch {
	case errors.Is(err, ErrCapacidadeExcedida):
		return "capacidade"
	case errors.Is(err, ErrLocalOcupado):
		return "ocupado"
	case errors.Is(err, ErrTipoIncompativel):
		return "tipo"
	}
	return ""
}
