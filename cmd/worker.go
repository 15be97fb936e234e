package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/venueops/services/booking/config"
	"example.com/venueops/services/booking/internal/cache"
	"example.com/venueops/services/booking/internal/messaging"
	"example.com/venueops/services/booking/internal/metrics"
	"example.com/venueops/services/booking/internal/search"
	"example.com/venueops/services/booking/internal/services"
	"example.com/venueops/services/booking/internal/tracing"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker to process payment messages from Azure Service Bus and reconcile unapplied payments`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	db, readOnlyDB, err := initDatabases(cfg)
	if err != nil {
		return err
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
	}

	metricsCollector := metrics.NewMetrics()

	eventService := services.NewEventService(db, readOnlyDB, redisCache, elasticClient, metricsCollector, tracer)

	serviceBus, err := messaging.NewServiceBusClient(cfg.Azure)
	if err != nil {
		return err
	}
	defer func() {
		if err := serviceBus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing Service Bus client")
		}
	}()

	// Start the service bus processor
	g.Go(func() error {
		log.Info().Str("queue", cfg.Azure.QueueName).Msg("Starting Azure Service Bus processor")
		return serviceBus.ProcessMessages(ctx, func(msgCtx context.Context, message *azservicebus.ReceivedMessage) error {
			txn := tracer.StartTransaction("process-payment-message")
			defer tracer.EndTransaction(txn)

			if err := eventService.ProcessPaymentMessage(msgCtx, message, txn); err != nil {
				tracer.RecordError(txn, err)
				return err
			}
			return nil
		})
	})

	// Fallback job for payments whose immediate application failed
	g.Go(func() error {
		log.Info().Msg("Starting payment reconciliation cron job as fallback mechanism")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(5*time.Minute),
			gocron.NewTask(func() {
				log.Info().Msg("Running fallback job to apply any missed payments")
				if err := eventService.ApplyUnappliedPayments(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to apply unapplied payments in fallback job")
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		<-ctx.Done()

		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
