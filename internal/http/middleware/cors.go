package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	corsMetodos         = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsCabecalhos      = "Authorization, Content-Type, Idempotency-Key, Last-Event-ID, X-Requested-With"
	corsExpostos        = "Retry-After, X-Request-Id"
	corsMaxAgePreflight = "600"
)

// origens separa entradas exatas de curingas "*.dominio".
type origens struct {
	exatas  map[string]struct{}
	sufixos []string
}

func novasOrigens(entradas []string) origens {
	o := origens{exatas: make(map[string]struct{}, len(entradas))}
	for _, e := range entradas {
		e = strings.TrimSpace(e)
		switch {
		case e == "":
		case strings.HasPrefix(e, "*."):
			o.sufixos = append(o.sufixos, strings.ToLower(e[1:]))
		default:
			o.exatas[strings.TrimSuffix(e, "/")] = struct{}{}
		}
	}
	return o
}

// permite aceita origem exata ou subdomínio de um curinga; o domínio raiz do curinga não entra.
func (o origens) permite(origin string) bool {
	if origin == "" {
		return false
	}
	if _, ok := o.exatas[origin]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, suf := range o.sufixos {
		if strings.HasSuffix(host, suf) && len(host) > len(suf) {
			return true
		}
	}
	return false
}

// CORS libera as origens de ALLOW_ORIGINS com credenciais para o cookie de refresh.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	permitidas := novasOrigens(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			h.Add("Vary", "Origin")

			liberada := permitidas.permite(origin)
			if liberada {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Expose-Headers", corsExpostos)
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !preflight {
				next.ServeHTTP(w, r)
				return
			}

			if liberada {
				h.Set("Access-Control-Allow-Methods", corsMetodos)
				h.Set("Access-Control-Allow-Headers", corsCabecalhos)
				h.Set("Access-Control-Max-Age", corsMaxAgePreflight)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
