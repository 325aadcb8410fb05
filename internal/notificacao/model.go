package notificacao

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("notificação não encontrada")

// Tipo da notificação.
type Tipo string

const (
	LocalDisponivel Tipo = "LOCAL_DISPONIVEL"
	NovaVenda       Tipo = "NOVA_VENDA"
	Sistema         Tipo = "SISTEMA"
)

const (
	tituloLocalDisponivel   = "Local de Armazenamento Disponível"
	mensagemLocalDisponivel = "O local %s que armazenava %s está agora disponível."
)

// Notificacao pertence a um único destinatário.
type Notificacao struct {
	ID        uuid.UUID      `json:"id"`
	UsuarioID uuid.UUID      `json:"usuarioId"`
	Tipo      Tipo           `json:"tipo"`
	Titulo    string         `json:"titulo"`
	Mensagem  string         `json:"mensagem"`
	Dados     map[string]any `json:"dados"`
	Lida      bool           `json:"lida"`
	CriadoEm  time.Time      `json:"createdAt"`
}

// LocalLiberado descreve o local que acabou de ficar vazio.
type LocalLiberado struct {
	LocalID     uuid.UUID `json:"localId"`
	LocalNome   string    `json:"localNome"`
	ProdutoNome string    `json:"produtoNome"`
}

func (l LocalLiberado) mensagem() string {
	return fmt.Sprintf(mensagemLocalDisponivel, l.LocalNome, l.ProdutoNome)
}

func (l LocalLiberado) dados() map[string]any {
	return map[string]any{
		"localId":     l.LocalID.String(),
		"localNome":   l.LocalNome,
		"produtoNome": l.ProdutoNome,
	}
}

// Canal devolve o canal pub/sub de notificações do usuário.
func Canal(uid uuid.UUID) string {
	return fmt.Sprintf("notificacoes:%s", uid)
}
