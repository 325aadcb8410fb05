package render

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/coopagro/gestao/internal/util"
)

// SuccessEnvelope padroniza respostas com dados.
type SuccessEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

// ErrorEnvelope padroniza respostas de erro.
type ErrorEnvelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody descreve falhas normalizadas.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

const maxBody = 1 << 20

// WriteJSON escreve envelope de sucesso.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessEnvelope{Data: data, Error: nil})
}

// WriteError escreve envelope de erro e mantém formato consistente.
func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Data:  nil,
		Error: &ErrorBody{Code: code, Message: message, Details: details},
	})
}

// DecodeJSON lê o corpo limitado a 1 MiB e rejeita campos desconhecidos.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "payload inválido"
		if errors.Is(err, io.EOF) {
			msg = "payload vazio"
		}
		WriteError(w, http.StatusBadRequest, "VALIDATION", msg, nil)
		return false
	}
	return true
}

// Validation responde 400 quando err é um util.ValidationError.
func Validation(w http.ResponseWriter, err error) bool {
	var verr *util.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	WriteError(w, http.StatusBadRequest, "VALIDATION", verr.Mensagem, map[string]string{"campo": verr.Campo})
	return true
}

// Internal registra a falha e responde com mensagem sanitizada.
func Internal(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("erro interno")
	WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
}
