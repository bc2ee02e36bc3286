package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/amrit2244/tally-einvoice-bridge/internal/config"
	"github.com/amrit2244/tally-einvoice-bridge/internal/credentials"
	httpapi "github.com/amrit2244/tally-einvoice-bridge/internal/interfaces/http"
	"github.com/amrit2244/tally-einvoice-bridge/internal/irp"
	"github.com/amrit2244/tally-einvoice-bridge/internal/pipeline"
	"github.com/amrit2244/tally-einvoice-bridge/internal/report"
	"github.com/amrit2244/tally-einvoice-bridge/internal/repository"
	"github.com/amrit2244/tally-einvoice-bridge/internal/schema"
	"github.com/amrit2244/tally-einvoice-bridge/internal/tally"
	"github.com/amrit2244/tally-einvoice-bridge/internal/worker"
	"github.com/amrit2244/tally-einvoice-bridge/pkg/database"
	"github.com/amrit2244/tally-einvoice-bridge/pkg/utils"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Tally e-invoice bridge",
		zap.String("irp_mode", cfg.IRP.Mode),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)
	runRepo := repository.NewRunRepository(db.DB, logger)

	// Credentials: environment wins, the settings API writes the file
	credProvider := credentials.NewChain(
		credentials.NewEnvProvider(cfg.App.EnvFile),
		credentials.NewFileProvider(cfg.App.CredFile),
	)

	tallyClient := tally.NewClient(tally.Config{
		URL:     cfg.Tally.URL(),
		Timeout: cfg.Tally.Timeout,
	}, logger)
	parser := tally.NewParser(logger)
	writer := tally.NewWriter(tallyClient, cfg.App.OperatorLogin, logger)

	mapper, err := schema.NewMapper(schema.SellerInfo{
		GSTIN:     cfg.IRP.UserGSTIN,
		LegalName: cfg.Seller.LegalName,
		TradeName: cfg.Seller.TradeName,
		Address1:  cfg.Seller.Address1,
		Address2:  cfg.Seller.Address2,
		Location:  cfg.Seller.Location,
		PinCode:   cfg.Seller.PinCode,
		StateCode: cfg.Seller.StateCode,
		Phone:     cfg.Seller.Phone,
		Email:     cfg.Seller.Email,
	}, logger)
	if err != nil {
		logger.Fatal("Seller details are incomplete", zap.Error(err))
	}

	irpClient := irp.NewClient(irp.Config{
		BaseURL:         cfg.IRP.BaseURL(),
		AuthPath:        cfg.IRP.AuthPath,
		GeneratePath:    cfg.IRP.GeneratePath,
		CancelPath:      cfg.IRP.CancelPath,
		GetIRNPath:      cfg.IRP.GetIRNPath,
		UserGSTIN:       cfg.IRP.UserGSTIN,
		AuthTimeout:     cfg.IRP.AuthTimeout,
		GenerateTimeout: cfg.IRP.GenerateTimeout,
	}, credProvider, logger)
	interpreter := irp.NewInterpreter(logger)

	orchestrator := pipeline.NewOrchestrator(
		tallyClient,
		parser,
		mapper,
		irpClient,
		interpreter,
		writer,
		invoiceRepo,
		repository.NewOutcomeListener(invoiceRepo, logger),
		logger,
	)

	pipelineWorker := worker.NewPipelineWorker(orchestrator, runRepo, logger)

	workerManager := worker.NewManager(logger)
	workerManager.Register(pipelineWorker)

	reportWriter := report.NewExcelWriter(cfg.App.ReportDir, logger)

	handlers := httpapi.NewHandlers(
		tallyClient,
		parser,
		invoiceRepo,
		pipelineWorker,
		runRepo,
		reportWriter,
		credProvider,
		irpClient.Session(),
		cfg.App.LookbackDays,
		logger,
	)
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := workerManager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server exited with error", zap.Error(err))
	}

	workerManager.StopAll()
	logger.Info("Shutdown complete")
}
