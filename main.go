package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/veridoc-inc/veridoc-engine/pkg/config"
	"github.com/veridoc-inc/veridoc-engine/pkg/database"
	"github.com/veridoc-inc/veridoc-engine/pkg/handlers"
	"github.com/veridoc-inc/veridoc-engine/pkg/llm"
	"github.com/veridoc-inc/veridoc-engine/pkg/logging"
	"github.com/veridoc-inc/veridoc-engine/pkg/middleware"
	"github.com/veridoc-inc/veridoc-engine/pkg/repositories"
	"github.com/veridoc-inc/veridoc-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.Bool("redis", cfg.Redis.IsAvailable()),
		zap.Bool("synthesizer", cfg.Synthesizer.IsAvailable()))

	ctx := context.Background()

	// Migrations run over database/sql; the pgx pool serves requests.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	cache, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, aggregator cache disabled", zap.Error(err))
		cache = nil
	}

	semanticClient, err := llm.NewClient(&llm.Config{
		Endpoint: cfg.SemanticAI.BaseURL,
		Model:    cfg.SemanticAI.Model,
		APIKey:   cfg.SemanticAI.APIKey,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create semantic client", zap.Error(err))
	}

	var synthesizer llm.Synthesizer
	if cfg.Synthesizer.IsAvailable() {
		synthesizer, err = llm.NewAnthropicSynthesizer(&llm.SynthesizerConfig{
			APIKey:    cfg.Synthesizer.APIKey,
			Model:     cfg.Synthesizer.Model,
			MaxTokens: cfg.Synthesizer.MaxTokens,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create synthesizer", zap.Error(err))
		}
	} else {
		logger.Warn("No synthesizer API key configured, answers degrade to listings")
		synthesizer = llm.UnavailableSynthesizer{}
	}

	constraints, err := services.LoadConstraintRules(cfg.ConstraintRulesPath, logger)
	if err != nil {
		logger.Fatal("Failed to load constraint rules", zap.Error(err))
	}

	// Repositories
	sessionRepo := repositories.NewSessionRepository(db)
	documentRepo := repositories.NewDocumentRepository(db)
	knowledgeRepo := repositories.NewKnowledgeRepository(db)
	orgRepo := repositories.NewOrganizationRepository(db)
	entityRepo := repositories.NewEntityRepository(db)
	safetyRepo := repositories.NewSafetyRuleRepository(db)
	validationRepo := repositories.NewValidationLogRepository(db)

	// Services
	safetyScreen := services.NewSafetyScreen(safetyRepo, logger)
	if count, err := safetyScreen.Reload(ctx); err != nil {
		logger.Warn("Safety rules load failed, using built-in patterns", zap.Error(err))
	} else {
		logger.Info("Safety rules loaded", zap.Int("rules", count))
	}

	sessionService := services.NewSessionService(sessionRepo, cfg.Session, logger)
	referenceResolver := services.NewReferenceResolver(semanticClient, logger)
	intentClassifier := services.NewIntentClassifier(semanticClient, safetyScreen, orgRepo, logger)
	aggregator := services.NewDataAggregator(documentRepo, knowledgeRepo, orgRepo, constraints, cache, cfg.Aggregator, logger)
	consolidation := services.NewConsolidationService(semanticClient, documentRepo, entityRepo, orgRepo, validationRepo, cfg.Consolidation, logger)
	chatService := services.NewChatService(sessionService, referenceResolver, intentClassifier, aggregator, synthesizer, logger)

	pool := llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: cfg.SemanticAI.MaxConcurrent}, logger)
	documentService := services.NewDocumentService(documentRepo, orgRepo, consolidation, pool, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(chatService, sessionService, logger).RegisterRoutes(mux)
	handlers.NewDocumentHandler(documentService, logger).RegisterRoutes(mux)
	handlers.NewOrganizationHandler(orgRepo, logger).RegisterRoutes(mux)
	handlers.NewSafetyHandler(safetyScreen, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting veridoc-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "test" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
