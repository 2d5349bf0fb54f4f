package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/smart-finance-tracker/internal/config"
	"github.com/dvloznov/smart-finance-tracker/internal/extract"
	"github.com/dvloznov/smart-finance-tracker/internal/ledger"
	"github.com/dvloznov/smart-finance-tracker/internal/logger"
	"github.com/dvloznov/smart-finance-tracker/internal/session"
	"github.com/dvloznov/smart-finance-tracker/internal/sheets"
	"github.com/dvloznov/smart-finance-tracker/internal/web/handlers"
	"github.com/dvloznov/smart-finance-tracker/internal/web/middleware"
)

func main() {
	// Parse command-line flags
	var (
		port = flag.String("port", "", "HTTP server port (overrides PORT env)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Port = *port
	}

	ctx := context.Background()

	// Initialize the sheet store and make sure both tables are usable
	// before accepting traffic.
	store, err := sheets.NewStore(ctx, cfg.SheetID, cfg.CredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sheet store")
	}

	if err := store.EnsureSchema(ctx, ledger.ExpensesTable, ledger.ExpensesHeader); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Expenses table")
	}
	if err := store.EnsureSchema(ctx, ledger.PendingTable, ledger.PendingHeader); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Pending table")
	}
	if err := store.VerifySchema(ctx, ledger.ExpensesTable, ledger.ExpensesHeader); err != nil {
		log.Fatal().Err(err).Msg("Expenses header verification failed")
	}
	if err := store.CheckAccess(ctx, ledger.ExpensesTable, len(ledger.ExpensesHeader)); err != nil {
		log.Fatal().Err(err).Msg("Spreadsheet is not writable")
	}

	log.Info().Str("url", store.SpreadsheetURL()).Msg("Connected to spreadsheet")

	// Initialize extraction and session state
	extractor := extract.New(extract.NewGeminiModel(cfg.GeminiAPIKey, cfg.GeminiModel))
	sessions := session.NewStore()

	// Initialize handlers
	chatHandler := handlers.NewChatHandler(extractor, sessions, log)
	ledgerHandler, err := handlers.NewLedgerHandler(store, sessions, cfg.ReadCacheTTL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger handler")
	}

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			chatHandler.HandleChat(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/confirm", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			ledgerHandler.HandleConfirm(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			ledgerHandler.HandleTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/pending", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			ledgerHandler.HandlePending(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/analytics", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			ledgerHandler.HandleAnalytics(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			ledgerHandler.HandleCategories(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
