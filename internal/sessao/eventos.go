package sessao

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Evento é publicado a cada transição de estado da sessão.
type Evento struct {
	UID    uuid.UUID `json:"uid"`
	Estado Estado    `json:"estado"`
	Em     time.Time `json:"em"`
}

// Canal devolve o canal pub/sub de sessão do usuário.
func Canal(uid uuid.UUID) string {
	return fmt.Sprintf("sessao:%s", uid)
}

// Publicador avisa os dependentes (streams abertos) sobre mudanças de sessão.
type Publicador struct {
	pub redisPublisher
}

// NewPublicador cria o publicador sobre o cliente Redis.
func NewPublicador(pub redisPublisher) *Publicador {
	return &Publicador{pub: pub}
}

// Publicar envia o novo estado no canal do usuário.
func (p *Publicador) Publicar(ctx context.Context, uid uuid.UUID, estado Estado) error {
	if p == nil || p.pub == nil {
		return nil
	}
	payload, err := json.Marshal(Evento{UID: uid, Estado: estado, Em: time.Now().UTC()})
	if err != nil {
		return err
	}
	return p.pub.Publish(ctx, Canal(uid), payload).Err()
}

// DecodificarEvento lê a mensagem recebida no canal de sessão.
func DecodificarEvento(payload string) (Evento, error) {
	var ev Evento
	err := json.Unmarshal([]byte(payload), &ev)
	return ev, err
}
