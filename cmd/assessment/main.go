package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/randomized-assessment/internal/cache"
	"github.com/SAP-F-2025/randomized-assessment/internal/config"
	"github.com/SAP-F-2025/randomized-assessment/internal/handlers"
	"github.com/SAP-F-2025/randomized-assessment/internal/i18n"
	"github.com/SAP-F-2025/randomized-assessment/internal/models"
	"github.com/SAP-F-2025/randomized-assessment/internal/repositories/postgres"
	"github.com/SAP-F-2025/randomized-assessment/internal/services"
	"github.com/SAP-F-2025/randomized-assessment/internal/session"
	"github.com/SAP-F-2025/randomized-assessment/internal/utils"
	"github.com/SAP-F-2025/randomized-assessment/internal/validator"
	"github.com/SAP-F-2025/randomized-assessment/pkg"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "assessment",
		Short: "Randomized assessment engine",
	}

	serve := serveCmd()
	root.AddCommand(serve, previewCmd())
	root.RunE = serve.RunE

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP session server",
		RunE:  runServe,
	}
	cmd.Flags().Duration("janitor-interval", time.Minute, "How often idle sessions are evicted")
	cmd.Flags().Duration("shutdown-timeout", 10*time.Second, "Grace period for in-flight requests")
	return cmd
}

func previewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Shuffle a question workbook and print the resulting layout",
		RunE:  runPreview,
	}
	f := cmd.Flags()
	f.StringP("file", "f", "", "Path to the xlsx question workbook (required)")
	f.Bool("exam", false, "Use exam mode (questions and options shuffled)")
	f.Int64("seed", 0, "Shuffle seed (0 = random)")
	f.Bool("json", false, "Print the identity mappings as JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := utils.NewLogger(cfg.Environment)
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}
	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	publisher, err := cfg.Events.CreateEventPublisher(logger.Slog())
	if err != nil {
		return fmt.Errorf("failed to create event publisher: %w", err)
	}
	defer publisher.Close()

	translator, err := i18n.New(cfg.DefaultLocale, logger.Slog())
	if err != nil {
		return err
	}

	repo := postgres.NewRepository(db)
	cacheService := cache.NewRedisCache(redisClient, logger.Slog())
	v := validator.New()

	questionSetService := services.NewQuestionSetService(repo, cacheService, v, logger.Slog())
	eventService := services.NewSessionEventService(publisher, logger.Slog())
	saver := services.NewAutoSaver(repo, cacheService, eventService, cfg.SessionTTL, logger.Slog())
	defer saver.Close()

	sessionService := services.NewSessionService(
		repo,
		questionSetService,
		cacheService,
		saver,
		eventService,
		translator,
		v,
		services.SessionServiceConfig{
			SessionTTL:         cfg.SessionTTL,
			IdleTimeout:        cfg.IdleTimeout,
			StrictSingleSelect: cfg.StrictSingleSelect,
		},
		logger.Slog(),
	)
	defer sessionService.Shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval, _ := cmd.Flags().GetDuration("janitor-interval")
	sessionService.StartJanitor(ctx, interval)

	var tokenParser handlers.TokenParser
	if cfg.Auth.Enabled {
		tokenParser = handlers.CasdoorTokenParser(cfg.Auth)
	} else {
		logger.Warn("Authentication disabled, trusting X-User-ID header")
	}

	router := gin.New()
	router.Use(gin.Recovery(), utils.LoggerMiddleware(logger), utils.ContextLogger(logger))
	handlers.NewHandlerManager(sessionService, questionSetService, logger).
		SetupRoutes(router, handlers.AuthMiddleware(tokenParser, logger))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	timeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.LogError(err, "Server shutdown incomplete")
	}
	if err := saver.Flush(shutdownCtx); err != nil {
		logger.LogError(err, "Failed to flush answer drafts")
	}
	return nil
}

func runPreview(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	exam, _ := cmd.Flags().GetBool("exam")
	seed, _ := cmd.Flags().GetInt64("seed")
	asJSON, _ := cmd.Flags().GetBool("json")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := services.ParseQuestionWorkbook(f, "preview", "")
	if err != nil {
		return err
	}
	if result.ErrorCount > 0 {
		for _, e := range result.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "row %d: %s: %s\n", e.Row, e.Column, e.Message)
		}
		return fmt.Errorf("%d invalid rows in %s", result.ErrorCount, path)
	}

	sess, err := session.New(*result.Set, exam, seed)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sess.Snapshot())
	}
	printLayout(out, sess.Questions(), exam, seed)
	return nil
}

func printLayout(w io.Writer, questions []models.DisplayQuestion, exam bool, seed int64) {
	mode := "practice"
	if exam {
		mode = "exam"
	}
	fmt.Fprintf(w, "mode=%s seed=%d\n", mode, seed)
	for _, q := range questions {
		fmt.Fprintf(w, "%d. [%s] %s (authored #%d)\n", q.DisplayIndex+1, q.ID, q.Prompt, q.CanonicalIndex+1)
		for i, opt := range q.Options {
			fmt.Fprintf(w, "   %c) %s\n", 'A'+i, opt)
		}
	}
}
