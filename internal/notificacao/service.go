package notificacao

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coopagro/gestao/internal/metrics"
	"github.com/coopagro/gestao/internal/papel"
	"github.com/coopagro/gestao/internal/repo"
	"github.com/coopagro/gestao/internal/util"
)

const limiteListagem = 20

type NotificacaoRepository interface {
	CreateBatch(ctx context.Context, ns []Notificacao) error
	ListByUsuario(ctx context.Context, uid uuid.UUID, limite int) ([]Notificacao, error)
	ListNaoLidas(ctx context.Context, uid uuid.UUID) ([]Notificacao, error)
	MarcarComoLida(ctx context.Context, uid, id uuid.UUID) error
	MarcarTodasComoLidas(ctx context.Context, uid uuid.UUID) (int64, error)
}

// Destinatarios resolve quem recebe o aviso.
type Destinatarios interface {
	ListMembrosPorPapel(ctx context.Context, papel string, excluir *uuid.UUID) ([]repo.Membro, error)
}

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Notifier espelha o aviso em um canal externo.
type Notifier interface {
	Notify(ctx context.Context, aviso Aviso) error
}

type Service struct {
	repo          NotificacaoRepository
	destinatarios Destinatarios
	pub           publisher
	webhook       Notifier
	metrics       *metrics.Metricas
	now           func() time.Time
	log           zerolog.Logger
}

// NewService aceita pub e webhook nulos; nesse caso só grava no banco.
func NewService(repo NotificacaoRepository, destinatarios Destinatarios, pub publisher, webhook Notifier, m *metrics.Metricas) *Service {
	return &Service{
		repo:          repo,
		destinatarios: destinatarios,
		pub:           pub,
		webhook:       webhook,
		metrics:       m,
		now:           util.Now,
		log:           log.With().Str("component", "notificacao").Logger(),
	}
}

// NotificarLocalDisponivel avisa todos os cooperados, exceto o remetente, que o local ficou livre.
// Devolve quantas notificações foram gravadas.
func (s *Service) NotificarLocalDisponivel(ctx context.Context, remetente uuid.UUID, local LocalLiberado) (int, error) {
	membros, err := s.destinatarios.ListMembrosPorPapel(ctx, string(papel.Cooperado), &remetente)
	if err != nil {
		s.metrics.Notificacao(string(LocalDisponivel), false)
		return 0, err
	}
	if len(membros) == 0 {
		return 0, nil
	}

	agora := s.now()
	ns := make([]Notificacao, 0, len(membros))
	for _, m := range membros {
		ns = append(ns, Notificacao{
			ID:        uuid.New(),
			UsuarioID: m.ID,
			Tipo:      LocalDisponivel,
			Titulo:    tituloLocalDisponivel,
			Mensagem:  local.mensagem(),
			Dados:     local.dados(),
			CriadoEm:  agora,
		})
	}
	if err := s.repo.CreateBatch(ctx, ns); err != nil {
		s.metrics.Notificacao(string(LocalDisponivel), false)
		return 0, err
	}
	s.metrics.Notificacao(string(LocalDisponivel), true)

	for _, n := range ns {
		s.publicar(ctx, n)
	}
	if s.webhook != nil {
		aviso := Aviso{Titulo: tituloLocalDisponivel, Texto: local.mensagem(), Destinatarios: len(ns)}
		if err := s.webhook.Notify(ctx, aviso); err != nil {
			s.log.Warn().Err(err).Str("local_id", local.LocalID.String()).Msg("falha ao enviar webhook de local disponível")
		}
	}

	s.log.Info().
		Str("local_id", local.LocalID.String()).
		Int("destinatarios", len(ns)).
		Msg("local disponível notificado")
	return len(ns), nil
}

func (s *Service) publicar(ctx context.Context, n Notificacao) {
	if s.pub == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		s.log.Warn().Err(err).Msg("falha ao serializar notificação")
		return
	}
	if err := s.pub.Publish(ctx, Canal(n.UsuarioID), payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("usuario_id", n.UsuarioID.String()).Msg("falha ao publicar notificação")
	}
}

// Listar devolve as 20 mais recentes do usuário.
func (s *Service) Listar(ctx context.Context, uid uuid.UUID) ([]Notificacao, error) {
	return s.repo.ListByUsuario(ctx, uid, limiteListagem)
}

func (s *Service) NaoLidas(ctx context.Context, uid uuid.UUID) ([]Notificacao, error) {
	return s.repo.ListNaoLidas(ctx, uid)
}

func (s *Service) MarcarComoLida(ctx context.Context, uid, id uuid.UUID) error {
	return s.repo.MarcarComoLida(ctx, uid, id)
}

func (s *Service) MarcarTodasComoLidas(ctx context.Context, uid uuid.UUID) (int64, error) {
	return s.repo.MarcarTodasComoLidas(ctx, uid)
}
