// Command pilotd runs the finpilot HTTP API: chat routing, plan execution
// and knowledge management over a sqlite-backed store and index.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go"
	"github.com/spf13/cobra"

	"finpilot"
	"finpilot/config"
	"finpilot/httpapi"
	"finpilot/knowledge"
	"finpilot/logging"
	"finpilot/model"
	"finpilot/model/anthropic"
	"finpilot/model/openai"
	"finpilot/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "pilotd",
	Short: "Finance assistant backend",
	Long:  "pilotd serves the finpilot chat API: advisor replies, confirm-then-execute calculations, and knowledge retrieval.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Output:    os.Stderr,
		Component: "pilotd",
	})

	var backend store.Backend
	if b, err := store.NewSQLiteBackend(cfg.StorePath); err != nil {
		// the resilient store serves from memory when no backend attaches
		logger.Warn("store backend unavailable, running in-memory", "error", err)
	} else {
		backend = b
	}

	idx, err := knowledge.NewSQLiteIndex(cfg.IndexPath)
	if err != nil {
		return fmt.Errorf("open knowledge index: %w", err)
	}
	defer idx.Close()

	generator, err := newGenerator(cfg)
	if err != nil {
		return err
	}
	logger.Info("model provider ready", "provider", generator.Info().Provider, "model", generator.Info().Name)

	pilot, err := finpilot.New(func(o *finpilot.Options) {
		o.Generator = generator
		o.Embedder = newEmbedder(cfg)
		o.Index = idx
		o.Backend = backend
		o.PlanTTL = cfg.PlanTTL.Std()
		o.SandboxTimeout = cfg.SandboxTimeout.Std()
		o.SearchK = cfg.SearchK
		o.HistoryLimit = cfg.HistoryLimit
		o.Logger = logger
	})
	if err != nil {
		return err
	}
	defer pilot.Close()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewServer(pilot.Engine(), func(o *httpapi.ServerOptions) { o.Logger = logger }).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func newGenerator(cfg config.Config) (model.Generator, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewGenerator(func(o *openai.Options) {
			o.Model = cfg.Model
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case "anthropic":
		return anthropic.NewGenerator(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(cfg.Model)
			o.APIKey = cfg.APIKey
		}), nil
	case "mock":
		return model.NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newEmbedder(cfg config.Config) knowledge.Embedder {
	if cfg.EmbeddingModel == "" || cfg.EmbeddingModel == "local" {
		return knowledge.NewHashEmbedder(0)
	}
	return knowledge.NewOpenAIEmbedder(func(o *knowledge.OpenAIEmbedderOptions) {
		o.Model = openaisdk.EmbeddingModel(cfg.EmbeddingModel)
		o.BaseURL = cfg.BaseURL
		o.APIKey = cfg.APIKey
	})
}
