package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsscheduler "github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"ms-reminders/internal/auth"
	"ms-reminders/internal/config"
	"ms-reminders/internal/dispatch"
	"ms-reminders/internal/eventbridge"
	"ms-reminders/internal/handlers"
	"ms-reminders/internal/kafka"
	"ms-reminders/internal/services"
	"ms-reminders/internal/trigger"
)

func main() {
	testUserID := flag.String("test-user", "", "Test resolving the email address for a specific user ID")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	keycloakClient := services.NewKeycloakClient(cfg.KeycloakURL, cfg.KeycloakRealm, cfg.ClientID, cfg.ClientSecret)

	// If a user ID is provided, test the email lookup and exit
	if *testUserID != "" {
		testGetUserEmail(keycloakClient, *testUserID)
		return
	}

	// Initialize database service and apply migrations
	dbService, err := services.NewDatabaseService(services.DatabaseConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		DBName:   cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSLMode,
	})
	if err != nil {
		log.Fatalf("Failed to initialize database service: %v", err)
	}
	defer dbService.Close()

	if err := dbService.RunMigrations(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize email service and verify the SMTP transport up front. The
	// service must not run without a working delivery channel.
	emailService := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass,
		cfg.ReminderFrom, "Book Tracker", cfg.DeliveryTimeout)
	if err := emailService.Verify(ctx); err != nil {
		log.Fatalf("SMTP transport verification failed: %v", err)
	}
	log.Println("SMTP transport verified")

	if cfg.SendTestOnStart {
		if err := emailService.SendEmail(ctx, cfg.ReminderTo, cfg.ReminderSubject, "Reminder service startup test message."); err != nil {
			log.Printf("Startup test email failed: %v", err)
		} else {
			log.Printf("Startup test email sent to %s", cfg.ReminderTo)
		}
	}

	// Wire the dispatch worker
	bookService := services.NewBookService(dbService.DB)
	ledgerService := services.NewLedgerService(dbService.DB)
	worker := dispatch.NewWorker(cfg, bookService, ledgerService, emailService, keycloakClient)

	// In-process cadence trigger
	cronRunner := cron.New(cron.WithLocation(cfg.Location))
	if _, err := cronRunner.AddFunc(cfg.ReminderCron, func() {
		if _, err := worker.RunCycle(ctx); err != nil {
			log.Printf("Scheduled dispatch cycle failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to register cadence trigger %q: %v", cfg.ReminderCron, err)
	}
	cronRunner.Start()
	defer cronRunner.Stop()
	log.Printf("Cadence trigger registered: %q in %s", cfg.ReminderCron, cfg.Timezone)

	// Serve on-demand cycle requests (Kafka nudges)
	go worker.ServeRequests(ctx)

	// Start the book-change consumer if Kafka is configured
	if cfg.KafkaURL != "" && cfg.BooksKafkaTopic != "" {
		log.Printf("Starting book consumer for topic %s at %s", cfg.BooksKafkaTopic, cfg.KafkaURL)
		bookConsumer := kafka.NewBookConsumer(cfg, worker)
		go func() {
			if err := bookConsumer.StartConsuming(ctx); err != nil {
				log.Printf("Error in book consumer: %v", err)
			}
		}()
	} else {
		log.Println("Kafka not configured, skipping book consumer setup")
	}

	// Start the SQS trigger processor and EventBridge bootstrap if configured
	if cfg.SQSReminderTriggerURL != "" {
		awsCfg := loadAWSConfig(ctx, cfg)

		sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWSEndpoint != "" {
				log.Printf("Using local endpoint for AWS services: %s", cfg.AWSEndpoint)
				o.BaseEndpoint = &cfg.AWSEndpoint
			}
		})

		if cfg.SchedulerBootstrapEnabled {
			schedulerClient := awsscheduler.NewFromConfig(awsCfg)
			schedulerService := eventbridge.NewService(cfg, schedulerClient)
			if err := schedulerService.EnsureCronSchedule(ctx); err != nil {
				log.Printf("EventBridge schedule bootstrap failed, in-process trigger still active: %v", err)
			}
		} else {
			log.Println("Scheduler ARNs not configured, skipping EventBridge bootstrap")
		}

		log.Printf("Starting trigger processor for queue: %s", cfg.SQSReminderTriggerURL)
		triggerProcessor := trigger.NewProcessor(sqsClient, cfg, worker)
		go func() {
			if err := triggerProcessor.ProcessMessages(ctx); err != nil {
				log.Printf("Trigger processor stopped: %v", err)
			}
		}()
	} else {
		log.Println("Trigger queue URL not configured, skipping SQS trigger setup")
	}

	// Set up the HTTP server for the trigger and audit API
	setupHTTPServer(cfg, worker, ledgerService, bookService, dbService)
}

// loadAWSConfig loads the AWS SDK configuration, preferring explicit
// credentials from the environment when present.
func loadAWSConfig(ctx context.Context, cfg config.Config) aws.Config {
	awsOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}

	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		log.Println("Using AWS credentials from environment variables")
		awsOptions = append(awsOptions, awsconfig.WithCredentialsProvider(
			aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     cfg.AWSAccessKeyID,
					SecretAccessKey: cfg.AWSSecretAccessKey,
				}, nil
			}),
		))
	} else {
		log.Println("No AWS credentials provided in environment variables, falling back to default credentials")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOptions...)
	if err != nil {
		log.Fatalf("unable to load AWS SDK config, %v", err)
	}
	return awsCfg
}

// setupHTTPServer configures and starts the HTTP server
func setupHTTPServer(cfg config.Config, worker *dispatch.Worker, ledgerService *services.LedgerService, bookService *services.BookService, dbService *services.DatabaseService) {
	router := mux.NewRouter()

	triggerHandler := handlers.NewTriggerHandler(worker, cfg)
	auditHandler := handlers.NewAuditHandler(worker, ledgerService, bookService)

	// Reminder API routes with authentication
	apiRouter := router.PathPrefix("/api/reminders/v1").Subrouter()
	apiRouter.Use(auth.AuthMiddleware)

	apiRouter.HandleFunc("/run", triggerHandler.RunCycle).Methods("POST")
	apiRouter.HandleFunc("/audit/due-today", auditHandler.DueToday).Methods("GET")
	apiRouter.HandleFunc("/audit/recent-attempts", auditHandler.RecentAttempts).Methods("GET")
	apiRouter.HandleFunc("/audit/stuck-claims", auditHandler.StuckClaims).Methods("GET")
	apiRouter.HandleFunc("/audit/config", auditHandler.UserConfig).Methods("GET")

	// Create health handler for health check endpoints
	healthHandler := handlers.NewHealthHandler(dbService)

	// Healthcheck endpoints (no authentication required)
	router.HandleFunc("/api/reminders/health", healthHandler.HandleHealth).Methods("GET")

	// K8s probe endpoints
	router.HandleFunc("/healthz", healthHandler.HandleHealth).Methods("GET")
	router.HandleFunc("/readyz", healthHandler.HandleReadiness).Methods("GET")
	router.HandleFunc("/livez", healthHandler.HandleLiveness).Methods("GET")

	serverAddr := cfg.ServerHost + ":" + cfg.ServerPort
	log.Printf("Starting HTTP server on %s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	log.Fatal(server.ListenAndServe())
}

// testGetUserEmail exercises the identity lookup for one user and exits.
func testGetUserEmail(keycloakClient *services.KeycloakClient, userID string) {
	log.Printf("Testing email lookup for user ID: %s", userID)

	if !keycloakClient.Configured() {
		log.Println("Keycloak is not configured, set KEYCLOAK_URL and REMINDER_CLIENT_SECRET")
		return
	}

	email, err := keycloakClient.GetUserEmail(userID)
	if err != nil {
		log.Printf("Error getting email for user %s: %v", userID, err)
		return
	}

	log.Printf("Successfully retrieved email for user %s: %s", userID, email)
}
