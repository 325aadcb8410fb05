package sessao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type redisKV interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Cache guarda o último perfil completo e o perfil pendente de cada usuário.
type Cache struct {
	kv  redisKV
	ttl time.Duration
}

// NewCache cria o cache com TTL para perfis completos.
func NewCache(kv redisKV, ttl time.Duration) *Cache {
	return &Cache{kv: kv, ttl: ttl}
}

func chavePerfil(uid uuid.UUID) string   { return fmt.Sprintf("sessao:perfil:%s", uid) }
func chavePendente(uid uuid.UUID) string { return fmt.Sprintf("sessao:pendente:%s", uid) }

// Salvar persiste apenas perfis completos.
func (c *Cache) Salvar(ctx context.Context, p Perfil) error {
	if !PerfilCompleto(&p) {
		return ErrPerfilIncompleto
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, chavePerfil(p.UID), payload, c.ttl).Err()
}

// Carregar reidrata o perfil; entradas que não passam na checagem de completude são descartadas.
func (c *Cache) Carregar(ctx context.Context, uid uuid.UUID) (Perfil, bool, error) {
	p, ok, err := c.ler(ctx, chavePerfil(uid))
	if err != nil || !ok {
		return Perfil{}, false, err
	}
	if !PerfilCompleto(&p) || p.UID != uid {
		_ = c.kv.Del(ctx, chavePerfil(uid)).Err()
		return Perfil{}, false, nil
	}
	return p, true, nil
}

// SalvarPendente guarda o perfil mapeado do provedor enquanto o usuário completa o cadastro.
func (c *Cache) SalvarPendente(ctx context.Context, p Perfil, ttl time.Duration) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, chavePendente(p.UID), payload, ttl).Err()
}

// CarregarPendente devolve o perfil pendente, se ainda válido.
func (c *Cache) CarregarPendente(ctx context.Context, uid uuid.UUID) (Perfil, bool, error) {
	return c.ler(ctx, chavePendente(uid))
}

// Limpar remove qualquer estado do usuário.
func (c *Cache) Limpar(ctx context.Context, uid uuid.UUID) error {
	return c.kv.Del(ctx, chavePerfil(uid), chavePendente(uid)).Err()
}

func (c *Cache) ler(ctx context.Context, key string) (Perfil, bool, error) {
	raw, err := c.kv.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Perfil{}, false, nil
		}
		return Perfil{}, false, err
	}
	var p Perfil
	if err := json.Unmarshal(raw, &p); err != nil {
		_ = c.kv.Del(ctx, key).Err()
		return Perfil{}, false, nil
	}
	return p, true, nil
}
