package notificacao

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Aviso é o resumo enviado para canais externos.
type Aviso struct {
	Titulo        string
	Texto         string
	Destinatarios int
}

type WebhookNotifier struct {
	url    string
	client *resty.Client
}

// NewWebhookNotifier devolve nil quando não há URL configurada.
func NewWebhookNotifier(url string) *WebhookNotifier {
	if url == "" {
		return nil
	}
	return &WebhookNotifier{
		url:    url,
		client: resty.New().SetTimeout(5 * time.Second),
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, aviso Aviso) error {
	if n == nil {
		return nil
	}
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"text":          formatarAviso(aviso),
			"destinatarios": aviso.Destinatarios,
		}).
		Post(n.url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("webhook respondeu %d", resp.StatusCode())
	}
	return nil
}

func formatarAviso(a Aviso) string {
	if a.Titulo != "" {
		return "*" + a.Titulo + "*\n" + a.Texto
	}
	return a.Texto
}
