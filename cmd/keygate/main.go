package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/keygate/keygate"
	"github.com/keygate/keygate/cmd/keygate/config"
	"github.com/keygate/keygate/internal/cache"
	"github.com/keygate/keygate/internal/geoip"
	"github.com/keygate/keygate/internal/logger"
	"github.com/keygate/keygate/internal/receipt"
	"github.com/keygate/keygate/internal/version"
	"github.com/keygate/keygate/service"
	"github.com/keygate/keygate/storage"
)

func main() {
	var configFile string
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}
	if err := config.Load(configFile); err != nil {
		log.WithError(err).Fatal("could not load config")
	}
	c := config.Get()
	if err := logger.Init(c.Logging.LoggerOptions()); err != nil {
		log.WithError(err).Fatal("could not init logging")
	}
	log.WithField("version", version.VERSION).Info("Loaded Config")

	switch {
	case c.Caching.Disabled:
		cache.Disable()
		log.Info("Caching disabled")
	case c.Caching.RedisOptions() != nil:
		if err := cache.UseRedisCache(c.Caching.RedisOptions()); err != nil {
			log.WithError(err).Fatal("could not init redis cache")
		}
		log.Info("Loaded Redis Cache")
	}

	store, err := storage.NewStorage(c.StorageConfig())
	if err != nil {
		log.WithError(err).Fatal("could not init storage")
	}
	log.WithField("driver", c.Storage.Driver).Info("Loaded storage backend")

	var opts []service.Option
	if db := c.GeoIP.Database; db != "" {
		geo, err := geoip.Open(db)
		if err != nil {
			log.WithError(err).Fatal("could not open geoip database")
		}
		defer geo.Close()
		opts = append(opts, service.WithGeoIP(geo))
		log.Info("Loaded GeoIP database")
	}
	if c.Receipts.Enabled {
		signer, err := receipt.NewSigner(c.Receipts.SignerConfig())
		if err != nil {
			log.WithError(err).Fatal("could not init receipt signer")
		}
		opts = append(opts, service.WithReceipts(signer))
		log.WithField("alg", signer.Alg()).Info("Loaded receipt signing key")
	}

	svc := service.New(store, c.ServiceConfig(), opts...)
	if err = svc.LoadSettings(context.Background()); err != nil {
		log.WithError(err).Fatal("could not load stored settings")
	}

	serverOpts := keygate.Options{
		LoginPath:         c.Login.Path,
		AdminEnabled:      c.API.Admin.Enabled,
		AdminUsersEnabled: c.API.Admin.UsersEnabled,
		AdminPort:         c.API.Admin.Port,
		ServerURL:         c.API.Admin.ServerURL,
		MetricsEnabled:    c.Metrics.Enabled,
		MetricsPath:       c.Metrics.Path,
	}
	if c.Logging.Access.Enabled() {
		if serverOpts.AccessLog, err = logger.AccessWriter(c.Logging.AccessOptions()); err != nil {
			log.WithError(err).Fatal("could not open access log")
		}
	}
	kg, err := keygate.NewKeyGate(c.Server, svc, store.Backends(), serverOpts)
	if err != nil {
		log.WithError(err).Fatal("could not init server")
	}
	log.Info("Added Endpoints")

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("Shutting down")
		if err := kg.Shutdown(); err != nil {
			log.WithError(err).Error("shutdown failed")
		}
		if err := store.Close(); err != nil {
			log.WithError(err).Error("could not close storage")
		}
		os.Exit(0)
	}()
	kg.Start()
}
