package sessao

import "context"

type ctxKey struct{}

// WithSessao injeta a sessão no contexto da requisição.
func WithSessao(ctx context.Context, s Sessao) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext recupera a sessão; ausente equivale a anônima.
func FromContext(ctx context.Context) Sessao {
	if s, ok := ctx.Value(ctxKey{}).(Sessao); ok {
		return s
	}
	return Anonima()
}
