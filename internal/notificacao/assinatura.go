package notificacao

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Mensagem recebida em um dos canais assinados.
type Mensagem struct {
	Canal   string
	Payload string
}

// Assinatura entrega mensagens até Close.
type Assinatura interface {
	Mensagens() <-chan Mensagem
	Close() error
}

type Assinante interface {
	Assinar(ctx context.Context, canais ...string) (Assinatura, error)
}

// RedisAssinante assina canais pub/sub do Redis.
type RedisAssinante struct {
	client *redis.Client
}

func NewRedisAssinante(client *redis.Client) *RedisAssinante {
	return &RedisAssinante{client: client}
}

func (a *RedisAssinante) Assinar(ctx context.Context, canais ...string) (Assinatura, error) {
	ps := a.client.Subscribe(ctx, canais...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan Mensagem)
	go func() {
		defer close(out)
		for m := range ps.Channel() {
			select {
			case out <- Mensagem{Canal: m.Channel, Payload: m.Payload}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return &redisAssinatura{ps: ps, out: out}, nil
}

type redisAssinatura struct {
	ps  *redis.PubSub
	out chan Mensagem
}

func (a *redisAssinatura) Mensagens() <-chan Mensagem { return a.out }

func (a *redisAssinatura) Close() error { return a.ps.Close() }
