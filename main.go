package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	orchestratorx "github.com/tanpawarit/autoshop-agent/agent/agents/orchestrator"
	routerx "github.com/tanpawarit/autoshop-agent/agent/agents/router"
	specialistx "github.com/tanpawarit/autoshop-agent/agent/agents/specialist"
	"github.com/tanpawarit/autoshop-agent/agent/api"
	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	"github.com/tanpawarit/autoshop-agent/agent/knowledge"
	llmx "github.com/tanpawarit/autoshop-agent/agent/llm"
	configx "github.com/tanpawarit/autoshop-agent/pkg/config"
	_ "github.com/tanpawarit/autoshop-agent/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/autoshop-agent/pkg/openrouter"
	qstashx "github.com/tanpawarit/autoshop-agent/pkg/qstash"
)

type AppConfig struct {
	HTTPAddr          string        `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseURL       string        `envconfig:"DATABASE_URL"`
	UseJSONFallback   bool          `envconfig:"USE_JSON_FALLBACK" default:"false"`
	FixtureDir        string        `envconfig:"FIXTURE_DIR" default:"data"`
	Currency          string        `envconfig:"CURRENCY" default:"INR"`
	TaxRate           float64       `envconfig:"TAX_RATE" default:"0.18"`
	NotifyDestination string        `envconfig:"NOTIFY_DESTINATION"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func (c AppConfig) Validate() error {
	if c.TaxRate < 0 {
		return errors.New("tax rate must not be negative")
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("APP")
	llmCfg := configx.MustNew[llmx.Config]("LLM")

	if llmCfg.ProbeOnStart {
		probeCfg := llmCfg.OpenRouterFor(contractx.AgentTypeIntake)
		if err := openrouterx.Probe(ctx, probeCfg); err != nil {
			log.Fatal().Err(err).Msg("llm probe failed")
		}
	}

	store, closeStore := mustStore(ctx, appCfg)
	defer closeStore()

	registry, err := specialistx.NewRegistry(ctx, *llmCfg, specialistx.Dependencies{
		Store:    store,
		Notifier: mustNotifier(appCfg),
		Currency: appCfg.Currency,
		TaxRate:  appCfg.TaxRate,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build capability registry")
	}

	router, err := routerx.NewRouter(ctx, registry, store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}
	estimates, err := orchestratorx.NewEstimateService(store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build estimate service")
	}
	svc, err := orchestratorx.New(router, estimates)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build orchestrator")
	}

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              appCfg.HTTPAddr,
		Handler:           api.NewEngine(api.NewHandler(svc, svc.Estimates())),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", appCfg.HTTPAddr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	log.Info().Msg("http server stopped")
}

// mustStore picks Postgres when a database URL is configured, the JSON
// fixtures otherwise, and puts the reference-data cache in front when
// Upstash is configured.
func mustStore(ctx context.Context, cfg *AppConfig) (contractx.KnowledgeStore, func()) {
	var (
		store   contractx.KnowledgeStore
		closeFn = func() {}
	)

	if cfg.UseJSONFallback || strings.TrimSpace(cfg.DatabaseURL) == "" {
		fx, err := knowledge.LoadFixtures(cfg.FixtureDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.FixtureDir).Msg("failed to load fixtures")
		}
		store = knowledge.NewFixtureStore(fx)
		log.Info().Str("dir", cfg.FixtureDir).Msg("using json fixture store")
	} else {
		db, err := knowledge.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open database")
		}
		bunStore := knowledge.NewBunStore(db)
		if err := bunStore.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("database unreachable")
		}
		store = bunStore
		closeFn = func() {
			if err := bunStore.Close(); err != nil {
				log.Error().Err(err).Msg("close database")
			}
		}
		log.Info().Msg("using postgres store")
	}

	if strings.TrimSpace(os.Getenv("UPSTASH_REDIS_URL")) != "" {
		cacheCfg := configx.MustNew[knowledge.UpstashRedisConfig]("UPSTASH_REDIS")
		cache, err := knowledge.NewUpstashCache(*cacheCfg, knowledge.WithKeyPrefix("autoshop"))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build reference cache")
		}
		store = knowledge.NewCachedGateway(store, cache)
		log.Info().Dur("ttl", cacheCfg.TTL).Msg("reference data cache enabled")
	}
	return store, closeFn
}

// mustNotifier returns nil when no notification destination is configured.
func mustNotifier(cfg *AppConfig) contractx.Notifier {
	dest := strings.TrimSpace(cfg.NotifyDestination)
	if dest == "" {
		return nil
	}
	qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
	return specialistx.NewQStashNotifier(qstashx.MustNew(*qstashCfg), dest)
}
