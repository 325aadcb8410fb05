package fazenda

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coopagro/gestao/internal/util"
)

// FazendaRepository descreve o armazenamento usado pelo serviço.
type FazendaRepository interface {
	Create(ctx context.Context, input CriarInput) (*Fazenda, error)
	Update(ctx context.Context, id uuid.UUID, input AtualizarInput) (*Fazenda, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Fazenda, error)
	List(ctx context.Context) ([]Fazenda, error)
}

// Service contém as regras de cadastro de fazendas.
type Service struct {
	repo     FazendaRepository
	cache    sync.Map
	cacheTTL time.Duration
}

// cachedFazenda armazena dados no cache em memória.
type cachedFazenda struct {
	fazenda  Fazenda
	expireAt time.Time
}

// NewService cria uma nova instância de Service.
func NewService(repo FazendaRepository) *Service {
	return &Service{repo: repo, cacheTTL: 2 * time.Minute}
}

// Criar valida nome e CNPJ e registra a fazenda.
func (s *Service) Criar(ctx context.Context, input CriarInput) (*Fazenda, error) {
	input.Nome = strings.TrimSpace(input.Nome)
	input.Endereco = strings.TrimSpace(input.Endereco)
	if err := util.RequireMinLen(input.Nome, "nome", 2); err != nil {
		return nil, err
	}
	if err := util.ValidarCNPJ(input.CNPJ); err != nil {
		return nil, err
	}
	input.CNPJ = util.SomenteDigitos(input.CNPJ)

	f, err := s.repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	s.guardar(*f)
	return f, nil
}

// Atualizar aplica merge parcial.
func (s *Service) Atualizar(ctx context.Context, id uuid.UUID, input AtualizarInput) (*Fazenda, error) {
	if input.Nome != nil {
		nome := strings.TrimSpace(*input.Nome)
		if err := util.RequireMinLen(nome, "nome", 2); err != nil {
			return nil, err
		}
		input.Nome = &nome
	}
	if input.CNPJ != nil {
		if err := util.ValidarCNPJ(*input.CNPJ); err != nil {
			return nil, err
		}
		cnpj := util.SomenteDigitos(*input.CNPJ)
		input.CNPJ = &cnpj
	}

	f, err := s.repo.Update(ctx, id, input)
	if err != nil {
		return nil, err
	}
	s.guardar(*f)
	return f, nil
}

// Remover exclui a fazenda e limpa o cache.
func (s *Service) Remover(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Delete(id)
	return nil
}

// Obter busca a fazenda, usando o cache em memória quando possível.
func (s *Service) Obter(ctx context.Context, id uuid.UUID) (*Fazenda, error) {
	if v, ok := s.cache.Load(id); ok {
		entry := v.(cachedFazenda)
		if time.Now().Before(entry.expireAt) {
			fazendaCopy := entry.fazenda
			return &fazendaCopy, nil
		}
		s.cache.Delete(id)
	}

	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.guardar(*f)

	fazendaCopy := *f
	return &fazendaCopy, nil
}

// Listar devolve todas as fazendas.
func (s *Service) Listar(ctx context.Context) ([]Fazenda, error) {
	fazendas, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	// Atualiza cache com o snapshot atual.
	for _, f := range fazendas {
		s.guardar(f)
	}
	return fazendas, nil
}

// Nome resolve o nome da fazenda para snapshots em colheitas e vendas.
func (s *Service) Nome(ctx context.Context, id uuid.UUID) (string, error) {
	f, err := s.Obter(ctx, id)
	if err != nil {
		return "", err
	}
	return f.Nome, nil
}

func (s *Service) guardar(f Fazenda) {
	s.cache.Store(f.ID, cachedFazenda{fazenda: f, expireAt: time.Now().Add(s.cacheTTL)})
}
