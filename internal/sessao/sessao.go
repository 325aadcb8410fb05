package sessao

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coopagro/gestao/internal/papel"
)

// Estado da sessão do usuário.
type Estado string

const (
	Anonimo          Estado = "ANONIMO"
	PerfilIncompleto Estado = "PERFIL_INCOMPLETO"
	Autenticado      Estado = "AUTENTICADO"
)

var (
	// ErrTransicaoInvalida indica transição fora da máquina de estados.
	ErrTransicaoInvalida = errors.New("transição de sessão inválida")
	// ErrPerfilIncompleto indica perfil sem CPF ou data de nascimento.
	ErrPerfilIncompleto = errors.New("perfil incompleto")
)

// Perfil é a forma do usuário mantida na sessão.
type Perfil struct {
	UID            uuid.UUID   `json:"uid"`
	Email          string      `json:"email"`
	Nome           string      `json:"firstName"`
	Sobrenome      string      `json:"lastName"`
	FotoURL        string      `json:"photoURL,omitempty"`
	CPF            string      `json:"cpf,omitempty"`
	DataNascimento *time.Time  `json:"birthDate,omitempty"`
	Papel          papel.Papel `json:"role,omitempty"`
	FazendaID      *uuid.UUID  `json:"fazendaId,omitempty"`
	FazendaNome    string      `json:"fazendaNome,omitempty"`
}

// NomeCompleto junta nome e sobrenome.
func (p Perfil) NomeCompleto() string {
	return strings.TrimSpace(p.Nome + " " + p.Sobrenome)
}

// PerfilCompleto só aceita perfis com CPF e data de nascimento preenchidos.
func PerfilCompleto(p *Perfil) bool {
	if p == nil || p.UID == uuid.Nil {
		return false
	}
	return strings.TrimSpace(p.CPF) != "" && p.DataNascimento != nil && !p.DataNascimento.IsZero()
}

// DadosComplementares são os campos exigidos para concluir o perfil.
type DadosComplementares struct {
	Nome           string
	Sobrenome      string
	CPF            string
	DataNascimento time.Time
	Papel          papel.Papel
	FazendaID      *uuid.UUID
	FazendaNome    string
}

// Sessao é o contexto explícito passado às operações de fluxo.
// O valor zero equivale à sessão anônima.
type Sessao struct {
	estado Estado
	perfil *Perfil
}

// Anonima devolve a sessão inicial.
func Anonima() Sessao {
	return Sessao{estado: Anonimo}
}

// Autenticar aplica o resultado de um login: perfil completo vai direto para
// AUTENTICADO, senão a sessão fica aguardando a conclusão do perfil.
func (s Sessao) Autenticar(p Perfil) Sessao {
	copia := p
	if PerfilCompleto(&copia) {
		return Sessao{estado: Autenticado, perfil: &copia}
	}
	return Sessao{estado: PerfilIncompleto, perfil: &copia}
}

// CompletarPerfil faz o merge dos dados e promove para AUTENTICADO.
func (s Sessao) CompletarPerfil(d DadosComplementares) (Sessao, error) {
	if s.Estado() != PerfilIncompleto || s.perfil == nil {
		return s, ErrTransicaoInvalida
	}
	p := *s.perfil
	if d.Nome != "" {
		p.Nome = d.Nome
	}
	if d.Sobrenome != "" {
		p.Sobrenome = d.Sobrenome
	}
	p.CPF = d.CPF
	if !d.DataNascimento.IsZero() {
		nasc := d.DataNascimento
		p.DataNascimento = &nasc
	}
	p.Papel = d.Papel
	p.FazendaID = d.FazendaID
	p.FazendaNome = d.FazendaNome

	if !PerfilCompleto(&p) {
		return s, ErrPerfilIncompleto
	}
	return Sessao{estado: Autenticado, perfil: &p}, nil
}

// Encerrar limpa todos os campos (logout).
func (s Sessao) Encerrar() Sessao {
	return Anonima()
}

// Cancelar abandona o perfil pendente e volta para ANONIMO.
func (s Sessao) Cancelar() Sessao {
	return s.Encerrar()
}

// Estado devolve o estado atual.
func (s Sessao) Estado() Estado {
	if s.estado == "" {
		return Anonimo
	}
	return s.estado
}

// Completa indica sessão presente e com perfil completo.
func (s Sessao) Completa() bool {
	return s.Estado() == Autenticado && PerfilCompleto(s.perfil)
}

// Usuario expõe o perfil somente quando a sessão está completa.
func (s Sessao) Usuario() (Perfil, bool) {
	if !s.Completa() {
		return Perfil{}, false
	}
	return *s.perfil, true
}

// Pendente expõe o perfil aguardando conclusão.
func (s Sessao) Pendente() (Perfil, bool) {
	if s.Estado() != PerfilIncompleto || s.perfil == nil {
		return Perfil{}, false
	}
	return *s.perfil, true
}

// UID devolve o identificador do usuário, completo ou pendente.
func (s Sessao) UID() uuid.UUID {
	if s.perfil == nil || s.Estado() == Anonimo {
		return uuid.Nil
	}
	return s.perfil.UID
}

// Pode consulta a tabela de capacidades do papel do usuário autenticado.
func (s Sessao) Pode(c papel.Capacidade) bool {
	u, ok := s.Usuario()
	return ok && u.Papel.Pode(c)
}
