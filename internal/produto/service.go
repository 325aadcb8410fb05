package produto

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/coopagro/gestao/internal/insumo"
	"github.com/coopagro/gestao/internal/papel"
	"github.com/coopagro/gestao/internal/sessao"
	"github.com/coopagro/gestao/internal/util"
)

type ProdutoRepository interface {
	Create(ctx context.Context, input CriarInput) (*Produto, error)
	Update(ctx context.Context, id uuid.UUID, input AtualizarInput) (*Produto, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Produto, error)
	List(ctx context.Context, insumoID *uuid.UUID) ([]Produto, error)
}

// Service contém as regras do catálogo de produtos.
type Service struct {
	repo ProdutoRepository
}

func NewService(repo ProdutoRepository) *Service {
	return &Service{repo: repo}
}

// Criar registra o produto em nome do usuário da sessão.
func (s *Service) Criar(ctx context.Context, sess sessao.Sessao, input CriarInput) (*Produto, error) {
	u, ok := sess.Usuario()
	if !ok {
		return nil, sessao.ErrPerfilIncompleto
	}
	input.Nome = strings.TrimSpace(input.Nome)
	input.Descricao = strings.TrimSpace(input.Descricao)
	if err := util.RequireMinLen(input.Nome, "nome", 2); err != nil {
		return nil, err
	}
	if err := validarTipo(input.Tipo); err != nil {
		return nil, err
	}
	if err := validarUnidade(input.UnidadeMedida); err != nil {
		return nil, err
	}
	if input.PrecoVenda.IsNegative() {
		return nil, &util.ValidationError{Campo: "precoVenda", Mensagem: "preço de venda não pode ser negativo"}
	}
	input.ProdutorID = u.UID
	input.ProdutorNome = u.NomeCompleto()
	return s.repo.Create(ctx, input)
}

// Atualizar aplica merge parcial; o cooperado só altera os próprios produtos.
func (s *Service) Atualizar(ctx context.Context, sess sessao.Sessao, id uuid.UUID, input AtualizarInput) (*Produto, error) {
	if err := s.autorizar(ctx, sess, id); err != nil {
		return nil, err
	}
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
	if input.PrecoVenda != nil && input.PrecoVenda.IsNegative() {
		return nil, &util.ValidationError{Campo: "precoVenda", Mensagem: "preço de venda não pode ser negativo"}
	}
	return s.repo.Update(ctx, id, input)
}

func (s *Service) Remover(ctx context.Context, sess sessao.Sessao, id uuid.UUID) error {
	if err := s.autorizar(ctx, sess, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) Obter(ctx context.Context, id uuid.UUID) (*Produto, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Listar(ctx context.Context) ([]Produto, error) {
	return s.repo.List(ctx, nil)
}

// ListarPorInsumo devolve os produtos originados do insumo.
func (s *Service) ListarPorInsumo(ctx context.Context, insumoID uuid.UUID) ([]Produto, error) {
	return s.repo.List(ctx, &insumoID)
}

func (s *Service) autorizar(ctx context.Context, sess sessao.Sessao, id uuid.UUID) error {
	u, ok := sess.Usuario()
	if !ok {
		return sessao.ErrPerfilIncompleto
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.Papel != papel.Cooperativa && p.ProdutorID != u.UID {
		return ErrNaoProdutor
	}
	return nil
}

func validarTipo(t Tipo) error {
	if !t.Valido() {
		return &util.ValidationError{Campo: "tipo", Mensagem: "tipo de produto inválido"}
	}
	return nil
}

func validarUnidade(u insumo.UnidadeMedida) error {
	if !u.Valida() {
		return &util.ValidationError{Campo: "unidadeMedida", Mensagem: "unidade de medida inválida"}
	}
	return nil
}
