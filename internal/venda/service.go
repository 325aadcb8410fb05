package venda

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coopagro/gestao/internal/armazenamento"
	"github.com/coopagro/gestao/internal/metrics"
	"github.com/coopagro/gestao/internal/notificacao"
	"github.com/coopagro/gestao/internal/sessao"
	"github.com/coopagro/gestao/internal/storage"
	"github.com/coopagro/gestao/internal/util"
)

const (
	compensacaoTimeout = 5 * time.Second
	avisoTimeout       = 10 * time.Second
)

type VendaRepository interface {
	Create(ctx context.Context, v Venda) (*Venda, error)
	GetByChave(ctx context.Context, fazendaID uuid.UUID, chave string) (*Venda, error)
	ListByFazenda(ctx context.Context, fazendaID uuid.UUID) ([]Venda, error)
}

type Armazenamento interface {
	RegistrarSaida(ctx context.Context, localID, fazendaID uuid.UUID, quantidade float64) (*armazenamento.Saida, error)
	RestaurarSaida(ctx context.Context, localID uuid.UUID, saida armazenamento.Saida) (*armazenamento.LocalArmazenamento, error)
}

// Avisos recebe o local liberado pela venda.
type Avisos interface {
	NotificarLocalDisponivel(ctx context.Context, remetente uuid.UUID, local notificacao.LocalLiberado) (int, error)
}

type Deps struct {
	Repo          VendaRepository
	Armazenamento Armazenamento
	Avisos        Avisos
	Uploader      storage.Uploader
	Metrics       *metrics.Metricas
}

// Service registra vendas como saga de dois passos:
// (a) saída do local, (b) venda gravada. Falha em (b) restaura (a).
type Service struct {
	repo          VendaRepository
	armazenamento Armazenamento
	avisos        Avisos
	uploader      storage.Uploader
	metrics       *metrics.Metricas
	now           func() time.Time
	log           zerolog.Logger
	pendentes     sync.WaitGroup
}

func NewService(d Deps) *Service {
	uploader := d.Uploader
	if uploader == nil {
		uploader = storage.NoopUploader{}
	}
	return &Service{
		repo:          d.Repo,
		armazenamento: d.Armazenamento,
		avisos:        d.Avisos,
		uploader:      uploader,
		metrics:       d.Metrics,
		now:           util.Now,
		log:           log.With().Str("component", "venda").Logger(),
	}
}

// RegistrarVenda retira a quantidade do local e grava a venda.
// A chave de idempotência vale por fazenda: repetida com os mesmos dados devolve a
// venda original sem mexer no local; com dados diferentes é ErrChaveEmUso.
func (s *Service) RegistrarVenda(ctx context.Context, sess sessao.Sessao, in RegistrarInput) (*Venda, error) {
	u, ok := sess.Usuario()
	if !ok {
		return nil, sessao.ErrPerfilIncompleto
	}
	if u.FazendaID == nil {
		return nil, ErrSemFazenda
	}
	if !in.Regiao.Valida() {
		return nil, &util.ValidationError{Campo: "regiao", Mensagem: ErrRegiaoInvalida.Error()}
	}
	if err := util.RequirePositive(in.Quantidade, "quantidade"); err != nil {
		return nil, err
	}
	fazendaID := *u.FazendaID

	chave := strings.TrimSpace(in.ChaveIdempotencia)
	if chave != "" {
		existente, err := s.repo.GetByChave(ctx, fazendaID, chave)
		if err == nil {
			return repeticao(existente, in)
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	// (a)
	saida, err := s.armazenamento.RegistrarSaida(ctx, in.LocalID, fazendaID, in.Quantidade)
	if err != nil {
		return nil, err
	}

	produtoNome := strings.TrimSpace(in.ProdutoNome)
	if produtoNome == "" {
		produtoNome = saida.Antes.ProdutoNome
	}
	fazendaNome := saida.Antes.FazendaNome
	if fazendaNome == "" {
		fazendaNome = u.FazendaNome
	}
	data := s.now()
	if in.DataVenda != nil && !in.DataVenda.IsZero() {
		data = in.DataVenda.Time
	}
	v := Venda{
		ID:          uuid.New(),
		ProdutoNome: produtoNome,
		Quantidade:  in.Quantidade,
		Regiao:      in.Regiao,
		LocalID:     in.LocalID,
		FazendaID:   fazendaID,
		FazendaNome: fazendaNome,
		DataVenda:   data,
	}
	if chave != "" {
		v.ChaveIdempotencia = &chave
	}

	// (b)
	gravada, err := s.repo.Create(ctx, v)
	if err != nil {
		s.restaurar(ctx, in.LocalID, *saida)
		if errors.Is(err, ErrChaveEmUso) {
			// outra requisição com a mesma chave venceu a corrida
			if existente, gerr := s.repo.GetByChave(ctx, fazendaID, chave); gerr == nil {
				return repeticao(existente, in)
			}
		}
		return nil, err
	}

	s.metrics.Venda(string(gravada.Regiao), gravada.Quantidade)
	s.log.Info().
		Str("venda_id", gravada.ID.String()).
		Str("local_id", in.LocalID.String()).
		Str("regiao", string(gravada.Regiao)).
		Float64("quantidade", gravada.Quantidade).
		Bool("local_liberado", saida.Liberado).
		Msg("venda registrada")

	if saida.Liberado {
		s.avisarLocalLiberado(ctx, u.UID, notificacao.LocalLiberado{
			LocalID:     saida.Depois.ID,
			LocalNome:   saida.Depois.Nome,
			ProdutoNome: saida.Antes.ProdutoNome,
		})
	}
	return gravada, nil
}

// repeticao aceita a venda gravada só quando o pedido repete local, quantidade e região.
func repeticao(v *Venda, in RegistrarInput) (*Venda, error) {
	if v.LocalID != in.LocalID || v.Quantidade != in.Quantidade || v.Regiao != in.Regiao {
		return nil, ErrChaveEmUso
	}
	return v, nil
}

func (s *Service) restaurar(ctx context.Context, localID uuid.UUID, saida armazenamento.Saida) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensacaoTimeout)
	defer cancel()

	_, err := s.armazenamento.RestaurarSaida(ctx, localID, saida)
	s.metrics.Compensacao("venda", err == nil)
	if err != nil {
		s.log.Error().Err(err).
			Str("local_id", localID.String()).
			Float64("quantidade", saida.Retirado()).
			Msg("falha ao restaurar saída do local")
	}
}

// avisarLocalLiberado dispara o aviso em segundo plano; falhas só são registradas.
func (s *Service) avisarLocalLiberado(ctx context.Context, remetente uuid.UUID, local notificacao.LocalLiberado) {
	if s.avisos == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.pendentes.Add(1)
	go func() {
		defer s.pendentes.Done()
		ctx, cancel := context.WithTimeout(ctx, avisoTimeout)
		defer cancel()

		if _, err := s.avisos.NotificarLocalDisponivel(ctx, remetente, local); err != nil {
			s.log.Warn().Err(err).Str("local_id", local.LocalID.String()).Msg("falha ao notificar local disponível")
		}
	}()
}

// Aguardar bloqueia até que os avisos em andamento terminem.
func (s *Service) Aguardar() {
	s.pendentes.Wait()
}

func (s *Service) ListarPorFazenda(ctx context.Context, fazendaID uuid.UUID) ([]Venda, error) {
	return s.repo.ListByFazenda(ctx, fazendaID)
}

// Resumo soma as quantidades vendidas por região.
func (s *Service) Resumo(ctx context.Context, fazendaID uuid.UUID) (*Resumo, error) {
	vendas, err := s.repo.ListByFazenda(ctx, fazendaID)
	if err != nil {
		return nil, err
	}
	return resumir(vendas), nil
}

func resumir(vendas []Venda) *Resumo {
	totais := make(map[Regiao]float64, len(Regioes))
	res := &Resumo{Vendas: len(vendas)}
	for _, v := range vendas {
		totais[v.Regiao] += v.Quantidade
		res.Total += v.Quantidade
	}
	res.PorRegiao = make([]TotalRegiao, 0, len(Regioes))
	for _, r := range Regioes {
		res.PorRegiao = append(res.PorRegiao, TotalRegiao{Regiao: r, Quantidade: totais[r]})
	}
	return res
}

// ExportarRelatorio gera o CSV das vendas da fazenda e envia para o storage configurado.
func (s *Service) ExportarRelatorio(ctx context.Context, fazendaID uuid.UUID) (*Relatorio, error) {
	vendas, err := s.repo.ListByFazenda(ctx, fazendaID)
	if err != nil {
		return nil, err
	}
	if len(vendas) == 0 {
		return nil, ErrSemVendas
	}
	body, err := gerarCSV(vendas)
	if err != nil {
		return nil, err
	}

	chave := "relatorios/vendas/" + fazendaID.String() + "/" + s.now().UTC().Format("20060102T150405") + ".csv"
	res, err := s.uploader.Upload(ctx, storage.UploadInput{
		Key:          chave,
		Body:         body,
		ContentType:  "text/csv; charset=utf-8",
		CacheControl: "no-store",
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("fazenda_id", fazendaID.String()).Str("chave", chave).Int("linhas", len(vendas)).Msg("relatório de vendas exportado")
	return &Relatorio{URL: res.URL, Chave: chave, Linhas: len(vendas)}, nil
}
