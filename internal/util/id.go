package util

import (
	"strings"

	"github.com/google/uuid"
)

// ParseID converte identificadores vindos de rotas e payloads.
func ParseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, invalido(field, field+" inválido")
	}
	return id, nil
}
