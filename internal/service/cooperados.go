package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/coopagro/gestao/internal/papel"
	"github.com/coopagro/gestao/internal/repo"
)

type membrosRepository interface {
	ListMembrosPorPapel(ctx context.Context, papel string, excluir *uuid.UUID) ([]repo.Membro, error)
}

// CooperadoService lista os membros da cooperativa.
type CooperadoService struct {
	repo membrosRepository
}

// NewCooperadoService cria o serviço sobre as queries de usuários.
func NewCooperadoService(r *repo.Queries) *CooperadoService {
	return &CooperadoService{repo: r}
}

// ListarCooperados devolve usuários com papel COOPERADO.
func (s *CooperadoService) ListarCooperados(ctx context.Context) ([]repo.Membro, error) {
	membros, err := s.repo.ListMembrosPorPapel(ctx, string(papel.Cooperado), nil)
	if err != nil {
		return nil, err
	}
	if membros == nil {
		membros = []repo.Membro{}
	}
	return membros, nil
}
