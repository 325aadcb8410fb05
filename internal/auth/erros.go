package auth

// Códigos de erro do provedor de identidade.
const (
	CodeUserNotFound          = "auth/user-not-found"
	CodeWrongPassword         = "auth/wrong-password"
	CodeInvalidCredential     = "auth/invalid-credential"
	CodeTooManyRequests       = "auth/too-many-requests"
	CodePopupClosedByUser     = "auth/popup-closed-by-user"
	CodePopupBlocked          = "auth/popup-blocked"
	CodeCancelledPopupRequest = "auth/cancelled-popup-request"
	CodeAccountExists         = "auth/account-exists-with-different-credential"
	CodeEmailAlreadyInUse     = "auth/email-already-in-use"
)

var mensagens = map[string]string{
	CodeUserNotFound:          "Usuário não encontrado.",
	CodeWrongPassword:         "Senha incorreta.",
	CodeInvalidCredential:     "Credenciais inválidas.",
	CodeTooManyRequests:       "Muitas tentativas. Tente novamente mais tarde.",
	CodePopupClosedByUser:     "Login cancelado. A janela foi fechada.",
	CodePopupBlocked:          "O popup de login foi bloqueado pelo navegador.",
	CodeCancelledPopupRequest: "Operação cancelada. Múltiplas solicitações de popup.",
	CodeAccountExists:         "Uma conta já existe com o mesmo email, mas credenciais diferentes.",
	CodeEmailAlreadyInUse:     "Este email já está em uso.",
}

const mensagemPadrao = "Ocorreu um erro ao fazer login. Tente novamente."

// ProviderError carrega o código devolvido pelo provedor de identidade.
type ProviderError struct {
	Code string
}

func (e ProviderError) Error() string {
	return Mensagem(e.Code)
}

// Mensagem traduz o código para o texto exibido ao usuário.
func Mensagem(code string) string {
	if msg, ok := mensagens[code]; ok {
		return msg
	}
	return mensagemPadrao
}

var (
	ErrUsuarioNaoEncontrado    = ProviderError{Code: CodeUserNotFound}
	ErrSenhaIncorreta          = ProviderError{Code: CodeWrongPassword}
	ErrCredencialInvalida      = ProviderError{Code: CodeInvalidCredential}
	ErrMuitasTentativas        = ProviderError{Code: CodeTooManyRequests}
	ErrContaComOutraCredencial = ProviderError{Code: CodeAccountExists}
	ErrEmailEmUso              = ProviderError{Code: CodeEmailAlreadyInUse}
)
