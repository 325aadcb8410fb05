package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metricas agrupa os contadores do fluxo compra → plantio → colheita → venda.
// Um valor nil é aceito e descarta as medições.
type Metricas struct {
	registry     *prometheus.Registry
	colheitas    prometheus.Counter
	vendas       *prometheus.CounterVec
	rejeicoes    *prometheus.CounterVec
	compensacoes *prometheus.CounterVec
	notificacoes *prometheus.CounterVec
	conflitos    prometheus.Counter
	quantidade   *prometheus.CounterVec
}

// New registra os coletores em um registry próprio.
func New() *Metricas {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metricas{
		colheitas: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coop",
			Name:      "colheitas_total",
			Help:      "Colheitas registradas com sucesso.",
		}),
		vendas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coop",
			Name:      "vendas_total",
			Help:      "Vendas registradas por região.",
		}, []string{"regiao"}),
		rejeicoes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coop",
			Name:      "armazenamento_rejeicoes_total",
			Help:      "Entradas recusadas no armazenamento por motivo.",
		}, []string{"motivo"}),
		compensacoes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coop",
			Name:      "compensacoes_total",
			Help:      "Compensações executadas pelos fluxos, por fluxo e resultado.",
		}, []string{"fluxo", "resultado"}),
		notificacoes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coop",
			Name:      "notificacoes_total",
			Help:      "Notificações emitidas por tipo e resultado.",
		}, []string{"tipo", "resultado"}),
		conflitos: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coop",
			Name:      "compras_conflitos_total",
			Help:      "Tentativas de escrita em itens de compra que perderam a corrida de versão.",
		}),
		quantidade: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coop",
			Name:      "quantidade_movimentada_total",
			Help:      "Quantidade movimentada no armazenamento por direção.",
		}, []string{"direcao"}),
	}
	m.registry = reg
	reg.MustRegister(m.colheitas, m.vendas, m.rejeicoes, m.compensacoes, m.notificacoes, m.conflitos, m.quantidade)
	return m
}

// Handler expõe o endpoint /metrics.
func (m *Metricas) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metricas) Colheita(quantidade float64) {
	if m == nil {
		return
	}
	m.colheitas.Inc()
	m.quantidade.WithLabelValues("entrada").Add(quantidade)
}

func (m *Metricas) Venda(regiao string, quantidade float64) {
	if m == nil {
		return
	}
	m.vendas.WithLabelValues(regiao).Inc()
	m.quantidade.WithLabelValues("saida").Add(quantidade)
}

func (m *Metricas) Rejeicao(motivo string) {
	if m == nil {
		return
	}
	m.rejeicoes.WithLabelValues(motivo).Inc()
}

// Compensacao conta desfazimentos; ok=false marca compensação que também falhou.
func (m *Metricas) Compensacao(fluxo string, ok bool) {
	if m == nil {
		return
	}
	resultado := "ok"
	if !ok {
		resultado = "falha"
	}
	m.compensacoes.WithLabelValues(fluxo, resultado).Inc()
}

func (m *Metricas) Notificacao(tipo string, ok bool) {
	if m == nil {
		return
	}
	resultado := "ok"
	if !ok {
		resultado = "falha"
	}
	m.notificacoes.WithLabelValues(tipo, resultado).Inc()
}

func (m *Metricas) Conflito() {
	if m == nil {
		return
	}
	m.conflitos.Inc()
}
