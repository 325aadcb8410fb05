package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/coopagro/gestao/internal/armazenamento"
	"github.com/coopagro/gestao/internal/colheita"
	"github.com/coopagro/gestao/internal/config"
	"github.com/coopagro/gestao/internal/fazenda"
	httpmiddleware "github.com/coopagro/gestao/internal/http/middleware"
	"github.com/coopagro/gestao/internal/http/render"
	"github.com/coopagro/gestao/internal/insumo"
	"github.com/coopagro/gestao/internal/metrics"
	"github.com/coopagro/gestao/internal/notificacao"
	"github.com/coopagro/gestao/internal/papel"
	"github.com/coopagro/gestao/internal/plantacao"
	"github.com/coopagro/gestao/internal/produto"
	"github.com/coopagro/gestao/internal/repo"
	"github.com/coopagro/gestao/internal/service"
	"github.com/coopagro/gestao/internal/storage"
	"github.com/coopagro/gestao/internal/venda"
)

type Handler struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	redis         *redis.Client
	authService   *service.AuthService
	cooperados    *service.CooperadoService
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	devCookies    bool
}

// Router é o handler HTTP da API com os serviços que precisam ser drenados no encerramento.
type Router struct {
	http.Handler
	vendas *venda.Service
}

// Aguardar bloqueia até que os avisos disparados por vendas terminem.
func (r *Router) Aguardar() {
	r.vendas.Aguardar()
}

// NewRouter devolve roteador configurado.
func NewRouter(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, authService *service.AuthService, m *metrics.Metricas) (*Router, error) {
	devCookies := false
	for _, origin := range cfg.AllowOrigins {
		if strings.Contains(origin, "localhost") {
			devCookies = true
			break
		}
	}

	uploader, err := novoUploader(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	queries := repo.New(pool)

	fazendaService := fazenda.NewService(fazenda.NewRepository(pool))
	insumoRepo := insumo.NewRepository(pool)
	insumoService := insumo.NewService(insumoRepo)
	produtoService := produto.NewService(produto.NewRepository(pool))
	armazemService := armazenamento.NewService(armazenamento.NewRepository(pool), m)
	plantacaoService := plantacao.NewService(plantacao.NewRepository(pool), insumoRepo, m)

	var webhook notificacao.Notifier
	if n := notificacao.NewWebhookNotifier(cfg.Notify.WebhookURL); n != nil {
		webhook = n
	}
	notificacaoService := notificacao.NewService(notificacao.NewRepository(pool), queries, redisClient, webhook, m)

	colheitaService := colheita.NewService(colheita.Deps{
		Repo:          colheita.NewRepository(pool),
		Plantacoes:    plantacaoService,
		Armazenamento: armazemService,
		Insumos:       insumoService,
		Fazendas:      fazendaService,
		Metrics:       m,
	})
	vendaService := venda.NewService(venda.Deps{
		Repo:          venda.NewRepository(pool),
		Armazenamento: armazemService,
		Avisos:        notificacaoService,
		Uploader:      uploader,
		Metrics:       m,
	})

	h := &Handler{
		cfg:           cfg,
		pool:          pool,
		redis:         redisClient,
		authService:   authService,
		cooperados:    service.NewCooperadoService(queries),
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		devCookies:    devCookies,
	}

	fazendaHandler := fazenda.NewHandler(fazendaService)
	dominio := []interface{ RegisterRoutes(chi.Router) }{
		fazendaHandler,
		insumo.NewHandler(insumoService),
		produto.NewHandler(produtoService),
		armazenamento.NewHandler(armazemService),
		plantacao.NewHandler(plantacaoService),
		colheita.NewHandler(colheitaService),
		venda.NewHandler(vendaService),
		notificacao.NewHandler(notificacaoService, notificacao.NewRedisAssinante(redisClient)),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)
		public.Method(http.MethodGet, "/metrics", m.Handler())

		fazendaHandler.RegisterPublicRoutes(public)

		public.Group(func(opcional chi.Router) {
			opcional.Use(httpmiddleware.AuthOpcional(authService.JWT(), authService))
			opcional.Get("/rotas/resolver", h.ResolverRota)
			opcional.Post("/auth/logout", h.Logout)
		})

		public.Post("/auth/login", h.Login)
		public.Post("/auth/federado", h.LoginFederado)
		public.Post("/auth/registrar", h.Registrar)
		public.Post("/auth/refresh", h.Refresh)
	})

	r.Group(func(pendente chi.Router) {
		pendente.Use(httpmiddleware.Auth(authService.JWT(), authService))
		pendente.Use(httpmiddleware.RequirePerfilPendente)

		pendente.Post("/auth/perfil/completar", h.CompletarPerfil)
		pendente.Post("/auth/perfil/cancelar", h.CancelarPerfil)
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(authService.JWT(), authService))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))
		private.Use(httpmiddleware.RequireSessaoCompleta)

		private.Get("/me", h.Me)
		private.Get("/menu", h.Menu)
		private.With(httpmiddleware.RequireCapacidade(papel.VerCooperados)).Get("/cooperados", h.Cooperados)

		for _, d := range dominio {
			d.RegisterRoutes(private)
		}
	})

	return &Router{Handler: r, vendas: vendaService}, nil
}

func novoUploader(ctx context.Context, cfg config.StorageConfig) (storage.Uploader, error) {
	switch cfg.Provider {
	case "", "noop":
		return storage.NoopUploader{}, nil
	case "s3", "minio":
		uploader, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PathStyle: cfg.S3PathStyle,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		return uploader, nil
	}
	return nil, fmt.Errorf("storage: provedor %s não suportado", cfg.Provider)
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com Postgres e Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbErr := h.pool.Ping(ctx)
	redisErr := h.redis.Ping(ctx).Err()

	if dbErr != nil || redisErr != nil {
		render.WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	render.WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
