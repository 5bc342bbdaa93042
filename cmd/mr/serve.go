package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/acme/autocert"
	"google.golang.org/grpc"

	"github.com/alfredjeanlab/motionrelay/internal/config"
	"github.com/alfredjeanlab/motionrelay/internal/events"
	"github.com/alfredjeanlab/motionrelay/internal/hooks"
	"github.com/alfredjeanlab/motionrelay/internal/idgen"
	"github.com/alfredjeanlab/motionrelay/internal/server"
	"github.com/alfredjeanlab/motionrelay/internal/store"
	"github.com/alfredjeanlab/motionrelay/internal/store/memory"
	"github.com/alfredjeanlab/motionrelay/internal/store/postgres"
	motionsync "github.com/alfredjeanlab/motionrelay/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Start the motion relay server",
	GroupID:           "system",
	Args:              cobra.NoArgs,
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
		slog.SetDefault(logger)

		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}

		publisher, err := openPublisher(cfg, logger)
		if err != nil {
			st.Close()
			return err
		}

		motionServer := server.NewMotionServer(st, publisher,
			server.WithLogger(logger),
			server.WithStaticDir(cfg.StaticDir),
			server.WithTrustProxy(cfg.TrustProxy),
		)
		motionServer.StartPresenceReaper(cfg.PresenceIdle)

		// gRPC is optional.
		var grpcServer *grpc.Server
		if cfg.GRPCAddr != "" {
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				motionServer.Stop()
				publisher.Close()
				st.Close()
				return err
			}
			grpcServer = server.NewGRPCServer(motionServer, cfg.AuthToken)
			go func() {
				logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
				if err := grpcServer.Serve(lis); err != nil {
					logger.Error("gRPC server error", "err", err)
				}
			}()
		}

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           motionServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		var acmeServer *http.Server
		if cfg.TLSAutocertDomain != "" {
			manager := &autocert.Manager{
				Prompt:     autocert.AcceptTOS,
				Cache:      autocert.DirCache(cfg.TLSCacheDir),
				HostPolicy: autocert.HostWhitelist(cfg.TLSAutocertDomain),
			}
			httpServer.TLSConfig = &tls.Config{GetCertificate: manager.GetCertificate}
			// HTTP-01 challenges and redirects to HTTPS.
			acmeServer = &http.Server{
				Addr:              ":80",
				Handler:           manager.HTTPHandler(nil),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				if err := acmeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("ACME challenge server error", "err", err)
				}
			}()
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr, "tls", cfg.TLSEnabled())
			var err error
			switch {
			case cfg.TLSAutocertDomain != "":
				err = httpServer.ListenAndServeTLS("", "")
			case cfg.TLSEnabled():
				err = httpServer.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
			default:
				err = httpServer.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		scheduler := startSync(cfg, st, logger)

		logger.Info("motion relay started",
			"http_addr", cfg.HTTPAddr,
			"grpc_addr", cfg.GRPCAddr,
			"history_size", cfg.HistorySize,
			"auth", cfg.AuthToken != "",
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		if grpcServer != nil {
			grpcServer.GracefulStop()
			logger.Info("gRPC server stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if acmeServer != nil {
			if err := acmeServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("ACME challenge server shutdown error", "err", err)
			}
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		motionServer.Stop()
		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// openStore returns the Postgres store when a database URL is configured and
// the in-memory ring otherwise.
func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory store", "history_size", cfg.HistorySize)
		return memory.New(cfg.HistorySize), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	st, err := postgres.New(ctx, cfg.DatabaseURL, postgres.Pool{MaxConns: cfg.DBMaxConns})
	if err != nil {
		return nil, err
	}
	logger.Info("using postgres store", "max_conns", cfg.DBMaxConns)
	return st, nil
}

// openPublisher connects every configured event bus and the hook
// dispatcher. Without any, events only reach SSE and gRPC watchers.
func openPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	var pubs []events.Publisher
	closeAll := func() {
		for _, p := range pubs {
			p.Close()
		}
	}

	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, pub)
		logger.Info("NATS events enabled", "nats_url", cfg.NATSURL)
	}

	if cfg.MQTTBroker != "" {
		clientID, err := idgen.Client()
		if err != nil {
			closeAll()
			return nil, err
		}
		pub, err := events.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTTopic, clientID)
		if err != nil {
			closeAll()
			return nil, err
		}
		pubs = append(pubs, pub)
		logger.Info("MQTT events enabled", "broker", cfg.MQTTBroker, "topic", cfg.MQTTTopic)
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			closeAll()
			return nil, err
		}
		pubs = append(pubs, pub)
		logger.Info("Kafka events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	brokers := len(pubs)

	hookCfg := hooks.Config{
		Joined:         cfg.HookJoined,
		Idle:           cfg.HookIdle,
		Rejected:       cfg.HookRejected,
		Shake:          cfg.HookShake,
		ShakeThreshold: cfg.HookShakeThreshold,
		Timeout:        cfg.HookTimeout,
	}
	if hookCfg.Enabled() {
		pubs = append(pubs, hooks.NewDispatcher(hookCfg, logger))
		logger.Info("event hooks enabled", "timeout", cfg.HookTimeout)
	}

	var pub events.Publisher
	switch len(pubs) {
	case 0:
		logger.Info("event bus disabled (MOTION_NATS_URL, MOTION_MQTT_BROKER and MOTION_KAFKA_BROKERS not set)")
		return &events.NoopPublisher{}, nil
	case 1:
		pub = pubs[0]
	default:
		pub = events.NewMultiPublisher(pubs...)
	}
	// Broker round trips stay off the ingest path. Hooks alone never block.
	if brokers > 0 {
		pub = events.NewQueuedPublisher(pub, events.DefaultQueueSize, logger)
	}
	return pub, nil
}

// startSync starts the export scheduler when an interval and at least one
// destination are configured.
func startSync(cfg *config.Config, st store.Store, logger *slog.Logger) *motionsync.Scheduler {
	if cfg.SyncInterval <= 0 {
		return nil
	}
	var dests []motionsync.Destination

	if cfg.SyncS3Bucket != "" {
		s3Dest, err := motionsync.NewS3Destination(context.Background(), motionsync.S3Options{
			Bucket:   cfg.SyncS3Bucket,
			Key:      cfg.SyncS3Key,
			Region:   cfg.SyncS3Region,
			Endpoint: cfg.SyncS3Endpoint,
		})
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}

	if cfg.SyncGitRepo != "" {
		dests = append(dests, motionsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}

	if len(dests) == 0 {
		return nil
	}
	scheduler := motionsync.NewScheduler(st, dests, cfg.SyncInterval, logger)
	scheduler.Start()
	logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
	return scheduler
}
