package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"crowdwatch/internal/auth"
	"crowdwatch/internal/cache"
	"crowdwatch/internal/config"
	"crowdwatch/internal/db"
	"crowdwatch/internal/enrich"
	"crowdwatch/internal/httpserver"
	"crowdwatch/internal/logging"
	"crowdwatch/internal/metrics"
	"crowdwatch/internal/ratelimit"
	"crowdwatch/internal/realtime"
	"crowdwatch/internal/reports"
	"crowdwatch/internal/uploads"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := logging.New("crowdwatch")

	cfg := config.Load()

	var (
		userStore   auth.Store
		reportStore reports.Store
	)
	switch cfg.Store {
	case config.StorePostgres:
		dbConn, err := db.OpenPostgres(ctx, cfg.DBDSN)
		if err != nil {
			logger.WithError(err).Fatal("open db")
		}
		defer dbConn.Close()
		if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsDir); err != nil {
			logger.WithError(err).Fatal("run migrations")
		}
		userStore = auth.NewPGStore(dbConn)
		reportStore = reports.NewPGStore(dbConn)
	default:
		client, database, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			logger.WithError(err).Fatal("connect mongo")
		}
		defer client.Disconnect(context.Background())
		users := auth.NewMongoStore(database)
		rs := reports.NewMongoStore(database)
		if err := users.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Fatal("user indexes")
		}
		if err := rs.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Fatal("report indexes")
		}
		userStore, reportStore = users, rs
		logger.WithFields(logrus.Fields{"uri": db.RedactURI(cfg.MongoURI), "db": cfg.MongoDB}).Info("mongo connected")
	}

	authSvc := auth.NewService(userStore, cfg.JWTSecret, cfg.TokenTTL)
	seeded, err := authSvc.SeedFromFile(ctx, cfg.UsersPath)
	if err != nil {
		logger.WithError(err).Fatal("seed users")
	}
	if seeded > 0 {
		logger.WithField("count", seeded).Info("seeded accounts")
	}

	// Photos
	var (
		photoStore   uploads.Store
		photoHandler http.Handler
	)
	if cfg.FTP.Host != "" {
		photoStore = uploads.NewFTPStore(cfg.FTP.Host, cfg.FTP.Port, cfg.FTP.User, cfg.FTP.Password, cfg.FTP.Dir, cfg.FTP.BaseURL)
		logger.WithField("host", cfg.FTP.Host).Info("storing photos on ftp")
	} else {
		local, err := uploads.NewLocalStore(cfg.UploadDir)
		if err != nil {
			logger.WithError(err).Fatal("upload dir")
		}
		photoStore, photoHandler = local, local.Handler()
	}

	m := metrics.New()

	// Realtime
	hub := realtime.NewHub(authSvc, logger, cfg.CORSOrigins)
	hub.OnChange = m.SetClients
	defer hub.Close()
	var publisher realtime.Publisher = hub
	if cfg.NATSURL != "" {
		nc, err := realtime.ConnectNATS(cfg.NATSURL, logger)
		if err != nil {
			logger.WithError(err).Fatal("connect nats")
		}
		defer nc.Drain()
		relay := realtime.NewNATSRelay(nc, cfg.NATSSubject, hub, logger)
		if err := relay.Start(); err != nil {
			logger.WithError(err).Fatal("start nats relay")
		}
		defer relay.Close()
		publisher = relay
	}

	common := reports.Common{
		Store:     reportStore,
		Directory: userStore,
		Uploads:   photoStore,
		Publisher: m.CountEvents(publisher),
		StatsTTL:  cfg.StatsTTL,
		Logger:    logger,
	}
	if cfg.RedisURL != "" {
		statsCache, err := cache.Open(ctx, cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, stats are not cached")
		} else {
			defer statsCache.Close()
			common.Cache = statsCache
		}
	}

	limiter := ratelimit.New(cfg.AuthRate, cfg.AuthBurst)
	go limiter.Run(ctx)
	proxies, err := ratelimit.ParseTrusted(cfg.TrustedProxies)
	if err != nil {
		logger.WithError(err).Fatal("parse trusted proxies")
	}

	validate := reports.NewValidator()
	handler := httpserver.NewRouter(httpserver.Deps{
		Logger:    logger,
		Auth:      authSvc,
		Reports:   common,
		Validate:  validate,
		MaxUpload: cfg.MaxUpload,
		Enrich: &enrich.Handler{
			Geocoder:   enrich.NewGeocoder(cfg.GeocoderURL),
			Classifier: enrich.NewClassifier(cfg.ClassifierURL),
			Translator: enrich.NewTranslator(cfg.TranslatorURL, logger),
			Validate:   validate,
			Logger:     logger,
		},
		Realtime:       hub,
		Uploads:        photoHandler,
		Metrics:        m,
		AuthLimiter:    limiter,
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: proxies,
	})
	server := httpserver.New(cfg.HTTPAddr, handler, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Error("http server")
			stop()
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.WithError(err).Error("shutdown error")
	}
}
