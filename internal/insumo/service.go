package insumo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coopagro/gestao/internal/util"
)

// InsumoRepository descreve o armazenamento usado pelo serviço.
type InsumoRepository interface {
	CreateInsumo(ctx context.Context, input CriarInsumoInput) (*Insumo, error)
	UpdateInsumo(ctx context.Context, id uuid.UUID, input AtualizarInsumoInput) (*Insumo, error)
	DeleteInsumo(ctx context.Context, id uuid.UUID) error
	GetInsumo(ctx context.Context, id uuid.UUID) (*Insumo, error)
	ListInsumos(ctx context.Context) ([]Insumo, error)
	CreateCompra(ctx context.Context, c Compra) (*Compra, error)
	GetCompra(ctx context.Context, id uuid.UUID) (*Compra, error)
	ListCompras(ctx context.Context, filtro FiltroCompras) ([]Compra, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status StatusCompra) (*Compra, error)
}

// Service contém as regras de catálogo e compras de insumos.
type Service struct {
	repo InsumoRepository
	now  func() time.Time
}

// NewService cria uma nova instância de Service.
func NewService(repo InsumoRepository) *Service {
	return &Service{repo: repo, now: util.Now}
}

// CriarInsumo valida e cadastra um insumo.
func (s *Service) CriarInsumo(ctx context.Context, input CriarInsumoInput) (*Insumo, error) {
	input.Nome = strings.TrimSpace(input.Nome)
	if err := util.RequireMinLen(input.Nome, "nome", 2); err != nil {
		return nil, err
	}
	if err := validarTipo(input.Tipo); err != nil {
		return nil, err
	}
	if err := validarUnidade(input.UnidadeMedida); err != nil {
		return nil, err
	}
	if input.ValorPorUnidade.IsNegative() {
		return nil, &util.ValidationError{Campo: "valorPorUnidade", Mensagem: "valor por unidade não pode ser negativo"}
	}
	return s.repo.CreateInsumo(ctx, input)
}

// AtualizarInsumo aplica merge parcial.
func (s *Service) AtualizarInsumo(ctx context.Context, id uuid.UUID, input AtualizarInsumoInput) (*Insumo, error) {
	if input.Nome != nil {
		nome := strings.TrimSpace(*input.Nome)
		if err := util.RequireMinLen(nome, "nome", 2); err != nil {
			return nil, err
		}
		input.Nome = &nome
	}
	if input.Tipo != nil {
		if err := validarTipo(*input.Tipo); err != nil {
			return nil, err
		}
	}
	if input.UnidadeMedida != nil {
		if err := validarUnidade(*input.UnidadeMedida); err != nil {
			return nil, err
		}
	}
	if input.ValorPorUnidade != nil && input.ValorPorUnidade.IsNegative() {
		return nil, &util.ValidationError{Campo: "valorPorUnidade", Mensagem: "valor por unidade não pode ser negativo"}
	}
	return s.repo.UpdateInsumo(ctx, id, input)
}

func (s *Service) RemoverInsumo(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteInsumo(ctx, id)
}

func (s *Service) ObterInsumo(ctx context.Context, id uuid.UUID) (*Insumo, error) {
	return s.repo.GetInsumo(ctx, id)
}

func (s *Service) ListarInsumos(ctx context.Context) ([]Insumo, error) {
	return s.repo.ListInsumos(ctx)
}

// RegistrarCompra cria a compra PENDENTE com snapshot dos insumos e totais em decimal.
func (s *Service) RegistrarCompra(ctx context.Context, input RegistrarCompraInput) (*Compra, error) {
	if len(input.Itens) == 0 {
		return nil, &util.ValidationError{Campo: "itens", Mensagem: "a compra precisa de ao menos um item"}
	}

	insumos := make(map[uuid.UUID]*Insumo)
	itens := make([]ItemCompra, 0, len(input.Itens))
	total := decimal.Zero
	for i, in := range input.Itens {
		campo := fmt.Sprintf("itens[%d]", i)
		if in.InsumoID == uuid.Nil {
			return nil, &util.ValidationError{Campo: campo + ".insumoId", Mensagem: "insumo obrigatório"}
		}
		if err := util.RequirePositive(in.Quantidade, campo+".quantidade"); err != nil {
			return nil, err
		}
		if in.FazendaID == uuid.Nil {
			return nil, &util.ValidationError{Campo: campo + ".fazendaId", Mensagem: "fazenda obrigatória"}
		}
		if in.CooperadoUID == uuid.Nil {
			return nil, &util.ValidationError{Campo: campo + ".cooperadoUid", Mensagem: "cooperado obrigatório"}
		}

		ins, ok := insumos[in.InsumoID]
		if !ok {
			var err error
			ins, err = s.repo.GetInsumo(ctx, in.InsumoID)
			if err != nil {
				return nil, err
			}
			insumos[in.InsumoID] = ins
		}

		valor := ins.ValorPorUnidade.Mul(decimal.NewFromFloat(in.Quantidade)).Round(2)
		total = total.Add(valor)
		itens = append(itens, ItemCompra{
			InsumoID:           ins.ID,
			InsumoNome:         ins.Nome,
			InsumoTipo:         ins.Tipo,
			UnidadeMedida:      ins.UnidadeMedida,
			ValorPorUnidade:    ins.ValorPorUnidade,
			QuantidadeComprada: in.Quantidade,
			QuantidadeUsada:    0,
			ValorTotal:         valor,
			FazendaID:          in.FazendaID,
			CooperadoUID:       in.CooperadoUID,
			CooperadoNome:      strings.TrimSpace(in.CooperadoNome),
		})
	}

	data := s.now()
	if input.DataCompra != nil && !input.DataCompra.IsZero() {
		data = *input.DataCompra
	}

	return s.repo.CreateCompra(ctx, Compra{
		ID:         uuid.New(),
		Itens:      itens,
		ValorTotal: total,
		DataCompra: data,
		Status:     Pendente,
	})
}

// AtualizarStatus troca o status da compra.
func (s *Service) AtualizarStatus(ctx context.Context, id uuid.UUID, status StatusCompra) (*Compra, error) {
	if !status.Valido() {
		return nil, &util.ValidationError{Campo: "status", Mensagem: "status inválido"}
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

func (s *Service) ObterCompra(ctx context.Context, id uuid.UUID) (*Compra, error) {
	return s.repo.GetCompra(ctx, id)
}

// ListarCompras devolve todas as compras.
func (s *Service) ListarCompras(ctx context.Context) ([]Compra, error) {
	return s.repo.ListCompras(ctx, FiltroCompras{})
}

// ListarPorCooperado devolve as compras com ao menos um item do cooperado.
func (s *Service) ListarPorCooperado(ctx context.Context, uid uuid.UUID) ([]Compra, error) {
	return s.repo.ListCompras(ctx, FiltroCompras{CooperadoUID: &uid})
}

// ListarPorFazenda devolve as compras com ao menos um item da fazenda.
func (s *Service) ListarPorFazenda(ctx context.Context, fazendaID uuid.UUID) ([]Compra, error) {
	return s.repo.ListCompras(ctx, FiltroCompras{FazendaID: &fazendaID})
}

func validarTipo(t TipoInsumo) error {
	if !t.Valido() {
		return &util.ValidationError{Campo: "tipo", Mensagem: "tipo de insumo inválido"}
	}
	return nil
}

func validarUnidade(u UnidadeMedida) error {
	if !u.Valida() {
		return &util.ValidationError{Campo: "unidadeMedida", Mensagem: "unidade de medida inválida"}
	}
	return nil
}

// IsNotFound agrupa os erros de ausência do pacote.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrCompraNaoEncontrada)
}
