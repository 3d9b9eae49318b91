package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/JoahanSP/SECURENET/internal/alerts"
	"github.com/JoahanSP/SECURENET/internal/archive"
	"github.com/JoahanSP/SECURENET/internal/config"
	"github.com/JoahanSP/SECURENET/internal/database/postgres"
	"github.com/JoahanSP/SECURENET/internal/events"
	"github.com/JoahanSP/SECURENET/internal/faces"
	"github.com/JoahanSP/SECURENET/internal/ingest"
	"github.com/JoahanSP/SECURENET/internal/metrics"
	"github.com/JoahanSP/SECURENET/internal/notify"
	"github.com/JoahanSP/SECURENET/internal/storage"
	"github.com/JoahanSP/SECURENET/internal/telegram"
	"github.com/JoahanSP/SECURENET/internal/web"
)

const (
	shutdownTimeout      = 30 * time.Second
	pendingSweepInterval = time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload server and the alert worker",
	Long: `Start the SecureNet server.
It accepts camera uploads, classifies them against the authorized-faces
gallery, sends intruder alerts to Telegram and handles the chat's replies.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 5000, "Port to listen on (overrides PORT)")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to (overrides HOST)")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies (overrides SESSION_SECRET)")
}

// resolveServeHostPort lets explicit flags win over the environment.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.ServerConfig) {
	if cmd.Flags().Changed("port") {
		cfg.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = mustGetString(cmd, "host")
	}
	if cmd.Flags().Changed("session-secret") {
		cfg.SessionSecret = mustGetString(cmd, "session-secret")
	}
}

// initFaceHNSW builds or loads the gallery HNSW index.
func initFaceHNSW(ctx context.Context, faceRepo *postgres.FaceRepository, indexPath string) {
	if err := faceRepo.EnableHNSW(ctx, indexPath); err != nil {
		logger.Warn().Err(err).Msg("failed to build gallery HNSW index, matching falls back to PostgreSQL")
		return
	}
	logger.Info().Int("faces", faceRepo.HNSWCount()).Str("path", indexPath).Msg("gallery HNSW index ready")
}

// buildNotifier wires the Telegram delivery side. Without a bot token the
// alerts are only logged and the returned poller is nil.
func buildNotifier(cfg *config.Config, router *storage.Router, registry *faces.Registry,
	archiver archive.Archiver, pub events.Publisher, m *metrics.Registry, log zerolog.Logger,
) (alerts.Deliverer, *notify.UpdatePoller, *notify.PendingDecisions) {
	if !cfg.Telegram.Enabled() {
		log.Warn().Msg("TELEGRAM_TOKEN or TELEGRAM_CHAT_ID not set, alerts will only be logged")
		return alerts.DelivererFunc(func(ctx context.Context, job alerts.Job) error {
			if archiver != nil {
				if _, err := archiver.Archive(ctx, job.Path); err != nil {
					log.Warn().Err(err).Msg("failed to archive intruder snapshot")
				}
			}
			log.Warn().Str("path", job.Path).Str("job", job.ID.String()).Msg("intruder detected")
			return nil
		}), nil, nil
	}

	bot := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.APIURL)
	deliverer := notify.NewAlertDeliverer(bot, cfg.Telegram.ChatID, cfg.Messages, archiver, log)
	pending := notify.NewPendingDecisions(cfg.Alerts.PendingTTL, log)
	handler := notify.NewCallbackHandler(bot, router, registry, pending, cfg.Messages, pub, m, log)
	poller := notify.NewUpdatePoller(bot, handler, cfg.Telegram.ChatID, cfg.Alerts.ErrorBackoff, log)
	return deliverer, poller, pending
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	resolveServeHostPort(cmd, &cfg.Server)

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Open(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	faceRepo := postgres.NewFaceRepository(pool)
	initFaceHNSW(ctx, faceRepo, cfg.Database.HNSWIndexPath)

	m := metrics.New()
	router := storage.NewRouter(cfg.Storage.PendingDir, cfg.Storage.IntruderDir, cfg.Storage.AuthorizedDir, cfg.Storage.MaxFiles, logger)
	if err := router.EnsureDirs(); err != nil {
		return err
	}
	queue := alerts.NewQueue(m)

	embedder := faces.NewClient(cfg.Faces.ServiceURL)
	opts := faces.MatcherOptions{
		DistanceThreshold: cfg.Faces.DistanceThreshold,
		MinDetScore:       cfg.Faces.MinDetScore,
		MaxImageSize:      cfg.Faces.MaxImageSize,
	}
	matcher := faces.NewMatcher(embedder, faceRepo, opts, logger)
	registry := faces.NewRegistry(embedder, faceRepo, opts, logger)

	pub, err := events.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger)
	if err != nil {
		// events are optional, the pipeline runs without them
		logger.Warn().Err(err).Msg("NATS unavailable, event publishing disabled")
		pub = events.Noop{}
	}
	defer pub.Close()

	var archiver archive.Archiver
	s3, err := archive.New(ctx, &cfg.Archive, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("S3 archive unavailable, intruder snapshots stay local only")
	} else if s3 != nil {
		archiver = s3
	}

	deliverer, poller, pending := buildNotifier(cfg, router, registry, archiver, pub, m, logger)

	// background work must outlive the signal context until shutdown is ordered
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	worker := alerts.NewWorker(queue, deliverer, m, alerts.WorkerOptions{
		PollInterval: cfg.Alerts.PollInterval,
		ErrorBackoff: cfg.Alerts.ErrorBackoff,
	}, logger)
	worker.Start(bgCtx)
	if poller != nil {
		go poller.Run(bgCtx)
		go pending.Run(bgCtx, pendingSweepInterval)
	}

	server := web.NewServer(&cfg.Server, web.Deps{
		Ingester:    ingest.NewService(router, matcher, queue, pub, m, logger),
		Router:      router,
		Queue:       queue,
		Faces:       registry,
		Users:       postgres.NewUserRepository(pool),
		SessionRepo: postgres.NewSessionRepository(pool),
		Metrics:     m,
	}, logger)

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	select {
	case err := <-serverErr:
		cancelBg()
		return fmt.Errorf("starting server: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	cancelBg()
	worker.Stop()
	if err := faceRepo.SaveHNSWIndex(); err != nil {
		logger.Warn().Err(err).Msg("failed to save gallery HNSW index")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}

	// let an in-flight alert finish
	select {
	case <-worker.Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("alert worker did not stop in time")
	}
	return nil
}
