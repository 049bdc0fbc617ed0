// Package main provides the sheet server binary that serves the character
// sheet HTTP API.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/cory-johannsen/aionia-sheet/internal/auth/google"
	"github.com/cory-johannsen/aionia-sheet/internal/config"
	"github.com/cory-johannsen/aionia-sheet/internal/export"
	"github.com/cory-johannsen/aionia-sheet/internal/frontend/handlers"
	"github.com/cory-johannsen/aionia-sheet/internal/frontend/web"
	"github.com/cory-johannsen/aionia-sheet/internal/game/dice"
	"github.com/cory-johannsen/aionia-sheet/internal/game/ruleset"
	"github.com/cory-johannsen/aionia-sheet/internal/game/session"
	"github.com/cory-johannsen/aionia-sheet/internal/observability"
	"github.com/cory-johannsen/aionia-sheet/internal/server"
	"github.com/cory-johannsen/aionia-sheet/internal/sheetfile"
	"github.com/cory-johannsen/aionia-sheet/internal/storage/drive"
	"github.com/cory-johannsen/aionia-sheet/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting sheet server",
		zap.String("addr", cfg.Server.Addr()),
	)

	tables := ruleset.Default()
	if cfg.Rules.Path != "" {
		tables, err = ruleset.LoadFile(cfg.Rules.Path)
		if err != nil {
			logger.Fatal("loading rule tables", zap.String("path", cfg.Rules.Path), zap.Error(err))
		}
	}
	logger.Info("rule tables loaded",
		zap.Int("skills", len(tables.Skills)),
		zap.Int("special_skill_groups", len(tables.SpecialSkills)),
	)

	printer, err := export.LoadPrinter(cfg.Rules.PrintTemplate)
	if err != nil {
		logger.Fatal("loading print template", zap.Error(err))
	}

	codec := sheetfile.NewCodec(tables)
	lifecycle := server.NewLifecycle(logger, cfg.Server.ShutdownTimeout)

	deps := handlers.Deps{
		Tables:         tables,
		Codec:          codec,
		Printer:        printer,
		Roller:         dice.NewLoggedRoller(dice.NewCryptoSource(), logger),
		PublicURL:      cfg.Server.PublicURL,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger,
	}

	// Local persistence is optional.
	var store session.Store
	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		repo := postgres.NewSheetRepository(pool.DB())
		store = session.NewRepositoryStore(repo, codec)
		deps.Local = repo
		deps.Health = handlers.PoolHealth(pool)

		lifecycle.Add("postgres", &server.FuncService{
			StopFn: func(context.Context) error {
				pool.Close()
				return nil
			},
		})
	} else {
		logger.Info("local persistence disabled")
	}

	sessions := session.NewManager(tables, store, session.Config{
		AutosaveDelay: cfg.Editor.AutosaveDelay,
		MaxSessions:   cfg.Editor.MaxSessions,
	}, logger)
	deps.Sessions = sessions

	if cfg.Google.OAuthConfigured() {
		auth, err := google.New(google.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Scopes:       cfg.Google.Scopes,
			StateTTL:     cfg.Google.StateTTL,
		}, logger)
		if err != nil {
			logger.Fatal("configuring google sign-in", zap.Error(err))
		}
		driveCfg := drive.Config{
			FolderName:     cfg.Google.FolderName,
			ConfigFileName: cfg.Google.ConfigFileName,
		}
		deps.Auth = auth
		deps.Drive = func(ctx context.Context, ts oauth2.TokenSource) (drive.Store, error) {
			return drive.New(ctx, ts, driveCfg, logger)
		}
	} else {
		logger.Info("google sign-in disabled")
	}
	if cfg.Google.APIKey != "" {
		apiKey := cfg.Google.APIKey
		deps.PublicDrive = func(ctx context.Context) (drive.Store, error) {
			return drive.NewPublic(ctx, apiKey, logger)
		}
	}

	api := handlers.New(deps)
	httpServer := web.NewServer(cfg.Server, api.Handler(), logger)

	lifecycle.Add("sessions", &server.FuncService{
		StopFn: func(context.Context) error {
			n := sessions.FlushAll()
			logger.Info("pending autosaves flushed", zap.Int("count", n))
			return nil
		},
	})
	lifecycle.Add("http", &server.FuncService{
		StartFn: httpServer.ListenAndServe,
		StopFn:  httpServer.Stop,
	})

	logger.Info("sheet server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("database", cfg.Database.Enabled),
		zap.Bool("google_oauth", cfg.Google.OAuthConfigured()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
