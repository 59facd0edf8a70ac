package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/webfolio/mail-infra/internal/auth"
	"github.com/webfolio/mail-infra/internal/config"
	"github.com/webfolio/mail-infra/internal/contact"
	"github.com/webfolio/mail-infra/internal/events"
	"github.com/webfolio/mail-infra/internal/eventstore/sqlite"
	"github.com/webfolio/mail-infra/internal/inbox"
	"github.com/webfolio/mail-infra/internal/mail"
	"github.com/webfolio/mail-infra/internal/mail/gmail"
	"github.com/webfolio/mail-infra/internal/mail/outlook"
	"github.com/webfolio/mail-infra/internal/server"
	"github.com/webfolio/mail-infra/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "mail-infra",
	Short: "Portfolio mail back-office service",
	Long:  "Syncs the portfolio mailbox into Postgres, serves the admin inbox API, and fans out mail events over NATS",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and the event dispatcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		deps, err := buildDeps(ctx, cfg)
		if err != nil {
			return err
		}
		defer deps.close()

		verifier, err := auth.NewJWTVerifier(cfg.JWKSURL)
		if err != nil {
			return fmt.Errorf("failed to initialize JWT verifier: %w", err)
		}

		// Outbox fan-out runs alongside the server; NATS being down only
		// delays events, it never blocks the pipeline.
		if deps.publisher != nil {
			if err := deps.publisher.EnsureStream(ctx); err != nil {
				log.Printf("events: ensure stream: %v", err)
			}
			go events.NewDispatcher(deps.eventStore, deps.publisher).Run(ctx)
		}

		srv := &server.Server{
			Sync:     deps.syncService,
			Ops:      deps.dispatcher,
			Threads:  deps.pg,
			Contacts: deps.contacts,
			Runs:     deps.eventStore,
			Probe:    deps.source,
		}

		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: srv.Router(verifier, cfg.AdminAddress),
		}

		errChan := make(chan error, 1)
		go func() {
			log.Printf("listening on %s", cfg.HTTPAddr)
			errChan <- httpServer.ListenAndServe()
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigChan:
			log.Println("shutting down")
			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return httpServer.Shutdown(shutdownCtx)
		case err := <-errChan:
			return err
		}
	},
}

// deps is the wired object graph shared by the serve and sync commands
type deps struct {
	pg          *store.Postgres
	eventStore  *sqlite.Store
	publisher   *events.Publisher
	source      mail.MailSource
	dispatcher  *inbox.Dispatcher
	contacts    *contact.Service
	syncService *recordedSync
}

func (d *deps) close() {
	if d.publisher != nil {
		d.publisher.Close()
	}
	if d.eventStore != nil {
		d.eventStore.Close()
	}
	if d.pg != nil {
		d.pg.Close()
	}
}

func buildDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	pg, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	eventStore, err := sqlite.Open(filepath.Join(cfg.DataDir, "events.db"))
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("failed to open event store: %w", err)
	}

	source, err := buildSource(ctx, cfg)
	if err != nil {
		eventStore.Close()
		pg.Close()
		return nil, err
	}

	publisher, err := events.NewPublisher(cfg.NATSURL)
	if err != nil {
		// Events are best-effort; the outbox holds them until NATS is back
		log.Printf("events: connect to NATS: %v", err)
		publisher = nil
	}

	reconciler := inbox.NewReconciler(source, pg, eventStore, inbox.SyncConfig{
		OwnerAddress: cfg.AdminAddress,
		Query:        cfg.SyncQuery,
		MaxMessages:  cfg.SyncMaxMessages,
	})

	return &deps{
		pg:          pg,
		eventStore:  eventStore,
		publisher:   publisher,
		source:      source,
		dispatcher:  inbox.NewDispatcher(source, pg, eventStore, cfg.AdminAddress),
		contacts:    contact.NewService(pg, source, cfg.ContactRecipient),
		syncService: &recordedSync{reconciler: reconciler, ledger: eventStore},
	}, nil
}

func buildSource(ctx context.Context, cfg *config.Config) (mail.MailSource, error) {
	switch cfg.Provider {
	case "GOOGLE", "":
		source, err := gmail.New(ctx, gmail.Credentials{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RefreshToken: cfg.GoogleRefreshToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gmail adapter: %w", err)
		}
		return source, nil
	case "MICROSOFT":
		source, err := outlook.New(cfg.GraphAccessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to create Outlook adapter: %w", err)
		}
		return source, nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// recordedSync wraps the reconciler with sync-run bookkeeping
type recordedSync struct {
	reconciler *inbox.Reconciler
	ledger     *sqlite.Store
}

func (r *recordedSync) RunSync(ctx context.Context) (int, error) {
	runID, err := r.ledger.BeginRun(ctx)
	if err != nil {
		log.Printf("sync: record run start: %v", err)
	}

	threadsSynced, runErr := r.reconciler.RunSync(ctx)

	if runID != 0 {
		if err := r.ledger.FinishRun(ctx, runID, threadsSynced, runErr); err != nil {
			log.Printf("sync: record run finish: %v", err)
		}
	}

	return threadsSynced, runErr
}

func init() {
	rootCmd.PersistentFlags().String("database.url", "", "Postgres connection URL")
	rootCmd.PersistentFlags().String("admin.address", "", "Mailbox owner address")
	rootCmd.PersistentFlags().String("http.addr", ":8080", "HTTP listen address")

	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database.url"))
	viper.BindPFlag("admin.address", rootCmd.PersistentFlags().Lookup("admin.address"))
	viper.BindPFlag("http.addr", rootCmd.PersistentFlags().Lookup("http.addr"))

	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(serveCmd)
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
