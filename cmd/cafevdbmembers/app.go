package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/cafevdb/cafevdbmembers/auth"
	"github.com/cafevdb/cafevdbmembers/auth/memory"
	"github.com/cafevdb/cafevdbmembers/caldav"
	"github.com/cafevdb/cafevdbmembers/entity"
	"github.com/cafevdb/cafevdbmembers/events"
	"github.com/cafevdb/cafevdbmembers/internal/config"
	"github.com/cafevdb/cafevdbmembers/internal/crypto"
	"github.com/cafevdb/cafevdbmembers/internal/database"
	"github.com/cafevdb/cafevdbmembers/internal/httpclient"
	"github.com/cafevdb/cafevdbmembers/internal/recurrence"
	"github.com/cafevdb/cafevdbmembers/nextcloud"
	"github.com/cafevdb/cafevdbmembers/projectgroups"
	"github.com/cafevdb/cafevdbmembers/settings"
)

// app holds the services shared by all commands.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *database.Manager
	settings *settings.Settings
	tokens   *auth.TokenService
	groups   nextcloud.GroupDirectory
	folders  nextcloud.GroupFolders
	sync     *projectgroups.Service
	events   *events.Service
	engine   *recurrence.Engine
	authn    auth.Authenticator
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	sealer, err := crypto.NewSealerFromBase64(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	entity.RegisterEncryption(sealer)

	db, err := database.Open(cfg.DatabaseDSN, sealer, database.WithLogger(logger.With("component", "database")))
	if err != nil {
		return nil, err
	}

	st := settings.New(settings.NewGormStore(db), settings.Defaults{
		RootFolder:      cfg.RootFolder,
		ManagementGroup: cfg.ManagementGroup,
	})

	cloudURL, err := url.Parse(cfg.CloudURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("invalid cloud URL: %w", err)
	}
	client := &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: httpclient.NewBasicAuthTransport(cfg.ServiceUser, cfg.ServicePassword,
			http.DefaultTransport, logger.With("component", "transport")),
	}
	cloud, err := httpclient.NewHttpClientWrapper(client, *cloudURL, logger.With("component", "cloud"))
	if err != nil {
		db.Close()
		return nil, err
	}

	requests := nextcloud.NewRequestService(cloud, logger.With("component", "requests"))
	groups := nextcloud.NewGroupDirectory(requests)
	folders := nextcloud.NewGroupFolders(requests)
	var authn auth.Authenticator = nextcloud.NewUserAuthenticator(*cloudURL, cfg.RequestTimeout,
		nextcloud.WithCacheTTL(cfg.LoginCacheTTL),
		nextcloud.WithAuthLogger(logger.With("component", "authentication")))
	if cfg.DevUsersFile != "" {
		if authn, err = memory.LoadFile(cfg.DevUsersFile, memory.WithLogger(logger.With("component", "authentication"))); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to load development accounts: %w", err)
		}
		logger.Warn("cloud authentication disabled, using development accounts", "file", cfg.DevUsersFile)
	}
	cacheOpt := recurrence.WithCache(recurrence.CacheConfig{
		TTL:        cfg.RecurrenceCacheTTL,
		MaxEntries: cfg.RecurrenceCacheEntries,
	})
	if cfg.RecurrenceCacheEntries == 0 {
		cacheOpt = recurrence.WithoutCache()
	}
	engine := recurrence.NewEngine(cacheOpt)

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		settings: st,
		tokens:   auth.NewTokenService(st, logger.With("component", "tokens")),
		groups:   groups,
		folders:  folders,
		sync: projectgroups.NewService(folders, groups, st,
			projectgroups.WithLogger(logger.With("component", "projectgroups"))),
		events: events.NewService(caldav.NewClient(cloud, logger.With("component", "caldav")), cfg.CalendarOwner(),
			events.WithLogger(logger.With("component", "events")),
			events.WithEngine(engine)),
		engine: engine,
		authn:  authn,
	}, nil
}

func (a *app) Close() {
	a.engine.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}
