package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/coopagro/gestao/internal/http/render"
	"github.com/coopagro/gestao/internal/sessao"
)

const limiteOcioso = 10 * time.Minute

// RateLimiter guarda um token bucket por chave (IP ou usuário).
type RateLimiter struct {
	limite rate.Limit
	rajada int

	mu        sync.Mutex
	baldes    map[string]*balde
	varridoEm time.Time
}

type balde struct {
	lim   *rate.Limiter
	visto time.Time
}

// NewRateLimiter cria limiter com taxa por segundo e rajada por chave.
func NewRateLimiter(reqPerSec float64, burst int) *RateLimiter {
	return &RateLimiter{
		limite:    rate.Limit(reqPerSec),
		rajada:    burst,
		baldes:    make(map[string]*balde),
		varridoEm: time.Now(),
	}
}

// reservar consome um token da chave e devolve quanto falta para o próximo quando esgotado.
func (l *RateLimiter) reservar(chave string, agora time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.baldes[chave]
	if !ok {
		b = &balde{lim: rate.NewLimiter(l.limite, l.rajada)}
		l.baldes[chave] = b
	}
	b.visto = agora

	if agora.Sub(l.varridoEm) > limiteOcioso {
		for k, v := range l.baldes {
			if agora.Sub(v.visto) > limiteOcioso {
				delete(l.baldes, k)
			}
		}
		l.varridoEm = agora
	}

	res := b.lim.ReserveN(agora, 1)
	if !res.OK() {
		return false, time.Second
	}
	espera := res.DelayFrom(agora)
	if espera > 0 {
		res.CancelAt(agora)
		return false, espera
	}
	return true, 0
}

// LimitByKey aplica o limite à chave extraída da requisição; sem chave a requisição passa.
func (l *RateLimiter) LimitByKey(next http.Handler, chaveDe func(*http.Request) (string, bool)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chave, ok := chaveDe(r)
		if !ok || chave == "" {
			next.ServeHTTP(w, r)
			return
		}

		permitido, espera := l.reservar(chave, time.Now())
		if !permitido {
			segundos := int(math.Ceil(espera.Seconds()))
			if segundos < 1 {
				segundos = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(segundos))
			render.WriteError(w, http.StatusTooManyRequests, "RATE_LIMIT", "Muitas requisições, tente novamente em instantes", map[string]string{
				"retryAfter": strconv.Itoa(segundos),
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// IPRateLimit limita por IP de origem.
func IPRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return limiter.LimitByKey(next, func(r *http.Request) (string, bool) {
			return "ip:" + realIPFromRequest(r), true
		})
	}
}

// UserRateLimit limita pelo usuário da sessão carregada por Auth.
func UserRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return limiter.LimitByKey(next, func(r *http.Request) (string, bool) {
			uid := sessao.FromContext(r.Context()).UID()
			if uid == uuid.Nil {
				if sub := GetSubject(r.Context()); sub != "" {
					return "uid:" + sub, true
				}
				return "", false
			}
			return "uid:" + uid.String(), true
		})
	}
}

func realIPFromRequest(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		primeiro, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(primeiro); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
