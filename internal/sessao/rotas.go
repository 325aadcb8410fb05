package sessao

import "strings"

// Caminhos do navegador protegidos pelo guard.
const (
	RotaApp      = "/app"
	RotaLogin    = "/login"
	RotaRegistro = "/register"
)

// Decisao é o resultado do guard para um caminho.
type Decisao struct {
	Permitido    bool   `json:"permitido"`
	Redirecionar string `json:"redirecionar,omitempty"`
}

// Resolver aplica o guard: /app exige sessão completa, /login e /register
// redirecionam quem já está autenticado, o resto cai em /app.
func Resolver(caminho string, s Sessao) Decisao {
	caminho = "/" + strings.Trim(strings.TrimSpace(caminho), "/")

	switch {
	case caminho == RotaApp || strings.HasPrefix(caminho, RotaApp+"/"):
		if s.Completa() {
			return Decisao{Permitido: true}
		}
		return Decisao{Redirecionar: RotaLogin}
	case caminho == RotaLogin || caminho == RotaRegistro:
		if s.Completa() {
			return Decisao{Redirecionar: RotaApp}
		}
		return Decisao{Permitido: true}
	}
	return Decisao{Redirecionar: RotaApp}
}
