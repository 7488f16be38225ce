package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"medreport/internal/answer"
	"medreport/internal/auth"
	"medreport/internal/blobstore"
	"medreport/internal/chunker"
	"medreport/internal/config"
	"medreport/internal/domain"
	ollamaembed "medreport/internal/embedding/ollama"
	"medreport/internal/ingest"
	"medreport/internal/llm"
	"medreport/internal/server"
	"medreport/internal/store/memstore"
	mongostore "medreport/internal/store/mongo"
	"medreport/internal/vectorindex/memory"
	"medreport/internal/vectorindex/qdrant"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medreport",
		Short: "Document-grounded medical report Q&A service",
	}
	rootCmd.AddCommand(serveCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the medreport API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cfgPath)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	return cmd
}

func runServer(cfgPath string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	startupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	timeout := time.Duration(cfg.Ollama.TimeoutSecs) * time.Second
	embedder, err := ollamaembed.New(ollamaembed.Config{
		Host:    cfg.Ollama.Host,
		Model:   cfg.Ollama.EmbedModel,
		Timeout: timeout,
	})
	if err != nil {
		return err
	}
	generator, err := llm.NewOllamaGenerator(llm.Config{
		Host:  cfg.Ollama.Host,
		Model: cfg.Ollama.GenerateModel,
	})
	if err != nil {
		return err
	}

	var index domain.VectorIndex
	switch cfg.IndexBackend {
	case "memory":
		index = memory.NewIndex()
		log.Warn().Msg("using in-memory vector index; data will not survive a restart")
	case "qdrant", "":
		qidx, err := qdrant.NewIndex(qdrant.Config{
			Addr:       cfg.Qdrant.Addr,
			Collection: cfg.Qdrant.Collection,
		})
		if err != nil {
			return err
		}
		defer qidx.Close()
		// Index readiness is a startup concern; failing here stops the
		// process instead of surfacing per-request errors later.
		if err := qidx.EnsureCollection(startupCtx, cfg.Qdrant.Dimension, cfg.Qdrant.ReadyPolls); err != nil {
			return fmt.Errorf("vector index not ready: %w", err)
		}
		index = qidx
	default:
		return fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}

	var reports domain.ReportStore
	var diagnoses domain.DiagnosisStore
	switch cfg.StoreBackend {
	case "memory":
		ms := memstore.NewStore()
		reports, diagnoses = ms, ms
		log.Warn().Msg("using in-memory metadata store; data will not survive a restart")
	case "mongo", "":
		store, err := mongostore.NewStore(startupCtx, mongostore.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		})
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = store.Close(shutdownCtx)
		}()
		reports, diagnoses = store, store
	default:
		return fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	files, err := blobstore.NewFileStore(cfg.UploadDir)
	if err != nil {
		return err
	}

	pipeline := ingest.NewPipeline(
		chunker.NewCharacterChunker(cfg.Chunker.Size, cfg.Chunker.Overlap),
		embedder, index, files, reports, log,
	)
	answerer := answer.NewAnswerer(embedder, index, generator, reports, diagnoses, cfg.TopK, log)
	authn := auth.NewStaticAuthenticator(cfg.Users)

	srv := server.New(pipeline, answerer, authn, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("server listening")
		errCh <- srv.Start(cfg.Server.Addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
