package util

import (
	"net/mail"
	"strings"
	"time"
	"unicode"
)

// ValidationError descreve um campo rejeitado antes de qualquer escrita.
type ValidationError struct {
	Campo    string `json:"campo"`
	Mensagem string `json:"mensagem"`
}

func (e *ValidationError) Error() string {
	return e.Mensagem
}

func invalido(campo, mensagem string) error {
	return &ValidationError{Campo: campo, Mensagem: mensagem}
}

// ValidateEmail retorna erro para e-mails inválidos.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalido("email", "email obrigatório")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return invalido("email", "email inválido")
	}
	return nil
}

// ValidatePassword verifica requisitos mínimos de senha.
func ValidatePassword(password string) error {
	if len(password) < 6 {
		return invalido("senha", "senha deve ter pelo menos 6 caracteres")
	}
	return nil
}

// ValidatePasswordConfirmation exige senha e confirmação idênticas.
func ValidatePasswordConfirmation(password, confirmation string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}
	if password != confirmation {
		return invalido("confirmarSenha", "as senhas não coincidem")
	}
	return nil
}

// RequireString garante string não vazia.
func RequireString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return invalido(field, field+" obrigatório")
	}
	return nil
}

// RequireMinLen garante tamanho mínimo após trim.
func RequireMinLen(value, field string, min int) error {
	if err := RequireString(value, field); err != nil {
		return err
	}
	if len([]rune(strings.TrimSpace(value))) < min {
		return invalido(field, field+" muito curto")
	}
	return nil
}

// RequirePositive rejeita quantidades zeradas ou negativas.
func RequirePositive(value float64, field string) error {
	if value <= 0 {
		return invalido(field, field+" deve ser maior que zero")
	}
	return nil
}

// SomenteDigitos remove pontuação de documentos.
func SomenteDigitos(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidarCPF confere tamanho e dígitos verificadores.
func ValidarCPF(cpf string) error {
	d := SomenteDigitos(cpf)
	if len(d) != 11 || repetido(d) {
		return invalido("cpf", "CPF inválido")
	}

	for _, n := range []int{9, 10} {
		soma := 0
		for i := 0; i < n; i++ {
			soma += int(d[i]-'0') * (n + 1 - i)
		}
		resto := (soma * 10) % 11
		if resto == 10 {
			resto = 0
		}
		if resto != int(d[n]-'0') {
			return invalido("cpf", "CPF inválido")
		}
	}
	return nil
}

// ValidarCNPJ confere tamanho e dígitos verificadores.
func ValidarCNPJ(cnpj string) error {
	d := SomenteDigitos(cnpj)
	if len(d) != 14 || repetido(d) {
		return invalido("cnpj", "CNPJ inválido")
	}

	pesos := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	for _, n := range []int{12, 13} {
		soma := 0
		for i := 0; i < n; i++ {
			soma += int(d[i]-'0') * pesos[len(pesos)-n+i]
		}
		dv := soma % 11
		if dv < 2 {
			dv = 0
		} else {
			dv = 11 - dv
		}
		if dv != int(d[n]-'0') {
			return invalido("cnpj", "CNPJ inválido")
		}
	}
	return nil
}

// ValidarIdadeMinima garante que a data de nascimento tenha pelo menos `anos` completos em `agora`.
func ValidarIdadeMinima(nascimento time.Time, anos int, agora time.Time) error {
	if nascimento.IsZero() {
		return invalido("dataNascimento", "data de nascimento obrigatória")
	}
	if nascimento.After(agora) {
		return invalido("dataNascimento", "data de nascimento no futuro")
	}
	if Idade(nascimento, agora) < anos {
		return invalido("dataNascimento", "idade mínima não atingida")
	}
	return nil
}

// Idade calcula anos completos entre nascimento e agora.
func Idade(nascimento, agora time.Time) int {
	idade := agora.Year() - nascimento.Year()
	if agora.Month() < nascimento.Month() || (agora.Month() == nascimento.Month() && agora.Day() < nascimento.Day()) {
		idade--
	}
	return idade
}

func repetido(d string) bool {
	return strings.Count(d, d[:1]) == len(d)
}
