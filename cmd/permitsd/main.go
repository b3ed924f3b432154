// Command permitsd runs the park permit back-office server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/permitkit/permitflow/internal/access"
	"github.com/permitkit/permitflow/internal/api"
	"github.com/permitkit/permitflow/internal/auth"
	"github.com/permitkit/permitflow/internal/cache"
	"github.com/permitkit/permitflow/internal/config"
	"github.com/permitkit/permitflow/internal/database"
	"github.com/permitkit/permitflow/internal/middleware"
	"github.com/permitkit/permitflow/internal/notifications"
	"github.com/permitkit/permitflow/internal/repository"
	"github.com/permitkit/permitflow/internal/runner"
	"github.com/permitkit/permitflow/internal/runner/tasks"
	"github.com/permitkit/permitflow/internal/sequence"
	"github.com/permitkit/permitflow/internal/services/applications"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "permitsd",
		Short:   "Park permit back-office server",
		Version: version,
	}

	var configPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and background tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	serve.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := log.New(log.Writer(), "[PERMITSD] ", log.LstdFlags)

	db, err := database.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	statusCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Printf("redis unavailable, task status persistence disabled: %v", err)
	}
	if statusCache != nil {
		defer statusCache.Close()
	}

	users := repository.NewUserRepository(db)
	parks := repository.NewParkRepository(db)
	permits := repository.NewPermitRepository(db)
	apps := repository.NewApplicationRepository(db)
	invoices := repository.NewInvoiceRepository(db)

	accessSvc := access.NewService(users)
	dispatcher := notifications.NewDispatcher(
		notifications.NewSMTPProvider(&cfg.Email),
		notifications.NewGatewaySMSProvider(&cfg.SMS),
	)

	invoiceSeq := sequence.NewScanGenerator(db, "invoices", "invoice_number")
	permitSeq := sequence.NewScanGenerator(db, "permits", "permit_number")
	appSeq := sequence.NewScanGenerator(db, "applications", "application_number")

	appSvc := applications.NewService(apps, invoices, accessSvc, invoiceSeq, dispatcher)

	jwtManager := auth.NewJWTManager(cfg.Auth.JWT.Secret, cfg.Auth.JWT.AccessTokenTTL)

	admission := middleware.NewAdmissionQueue(
		middleware.WithCapacity(cfg.Admission.Capacity),
		middleware.WithItemTimeout(cfg.Admission.ItemTimeout),
		middleware.WithDrainInterval(cfg.Admission.DrainInterval),
		middleware.WithAllowlist(api.AllowlistPaths()...),
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), admission.Middleware())

	apiRouter := api.NewAPIRouter(api.Deps{
		Users:      users,
		Parks:      parks,
		Permits:    permits,
		Apps:       apps,
		Invoices:   invoices,
		AppService: appSvc,
		Access:     accessSvc,
		JWT:        jwtManager,
		PermitSeq:  permitSeq,
		InvoiceSeq: invoiceSeq,
		AppSeq:     appSeq,
	})
	apiRouter.RegisterRoutes(engine, middleware.AuthMiddleware(jwtManager, users))

	taskRunner := runner.New(runner.WithStatusCache(statusCache))
	reaper := tasks.NewApplicationReaperTask(apps,
		tasks.WithReaperInterval(cfg.Runner.Reaper.Interval),
		tasks.WithReaperMaxAge(cfg.Runner.Reaper.MaxAge),
	)
	if err := taskRunner.Register(reaper); err != nil {
		return fmt.Errorf("failed to register reaper: %w", err)
	}

	// The queue holds requests until the initial task pass has finished, then
	// flips open for the life of the process.
	warmed := taskRunner.Start()
	go func() {
		<-warmed
		admission.Ready()
		logger.Printf("warm-up complete, admitting requests")
	}()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-stop:
		logger.Printf("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("forced shutdown: %v", err)
	}
	taskRunner.Stop()
	dispatcher.Wait()
	return nil
}
