package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/finlens/statement-insights/internal/api/handlers"
	"github.com/finlens/statement-insights/internal/api/middleware"
	"github.com/finlens/statement-insights/internal/gemini"
	"github.com/finlens/statement-insights/internal/logger"
	"github.com/finlens/statement-insights/internal/pdfdoc"
	"github.com/finlens/statement-insights/internal/pipeline"
	"github.com/finlens/statement-insights/internal/store"
	"github.com/finlens/statement-insights/internal/store/gcstore"
	"github.com/finlens/statement-insights/internal/store/memory"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var (
		port    = flag.String("port", "8080", "HTTP server port")
		bucket  = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for transaction history (or set GCS_BUCKET env)")
		qpdf    = flag.String("qpdf", "qpdf", "path to the qpdf binary")
		tempDir = flag.String("temp-dir", os.TempDir(), "scratch directory for decryption temp files")
	)
	flag.Parse()

	log := logger.New()
	ctx := context.Background()

	gen, err := gemini.NewGenAIGenerator(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	ai := gemini.NewClient(gen, log)

	decryptor := pdfdoc.NewDecryptor(*qpdf, *tempDir)
	processor := pipeline.NewProcessor(decryptor, ai, log)

	// Transaction history: GCS when a bucket is configured, memory otherwise.
	// The memory store always stands by as the fallback for failed saves.
	fallback := memory.NewStore()
	var txns store.TransactionStore = fallback
	if *bucket != "" {
		gcs, err := gcstore.NewStore(ctx, *bucket, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS store")
		}
		defer gcs.Close()
		txns = gcs
	} else {
		log.Warn().Msg("No GCS bucket configured - transaction history is in-memory only")
	}
	profiles := memory.NewProfileStore()

	statementsHandler := handlers.NewStatementsHandler(processor, txns, fallback, profiles, log)
	transactionsHandler := handlers.NewTransactionsHandler(txns, log)
	profilesHandler := handlers.NewProfilesHandler(profiles, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			statementsHandler.Upload(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/count", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			statementsHandler.Count(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/batch", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			statementsHandler.Batch(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/recategorize", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			statementsHandler.Recategorize(ai)(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			transactionsHandler.List(w, r)
		case http.MethodPost:
			transactionsHandler.Save(w, r)
		case http.MethodDelete:
			transactionsHandler.DeleteAll(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/password-profiles", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			profilesHandler.List(w, r)
		case http.MethodPost:
			profilesHandler.Create(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/password-profiles/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		profileID := strings.TrimPrefix(r.URL.Path, "/api/password-profiles/")
		if profileID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Profile ID is required")
			return
		}
		profilesHandler.Delete(w, r, profileID)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:    ":" + *port,
		Handler: handler,
		// Statement processing holds the connection open while the model
		// works, so the write timeout is generous.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
