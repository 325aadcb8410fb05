package repo

import "errors"

var (
	// ErrNotFound é retornado quando nenhum registro é encontrado.
	ErrNotFound = errors.New("registro não encontrado")
	// ErrEmailEmUso indica violação da unicidade de email.
	ErrEmailEmUso = errors.New("email já cadastrado")
	// ErrCPFEmUso indica violação da unicidade de CPF.
	ErrCPFEmUso = errors.New("CPF já cadastrado")
	// ErrFazendaInexistente indica fazenda_id sem registro correspondente.
	ErrFazendaInexistente = errors.New("fazenda não encontrada")
)
