package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/nurpe/supply-settlement/internal/config"
	"github.com/nurpe/supply-settlement/internal/db"
	"github.com/nurpe/supply-settlement/internal/excel"
	"github.com/nurpe/supply-settlement/internal/logger"
	"github.com/nurpe/supply-settlement/internal/notify"
	"github.com/nurpe/supply-settlement/internal/password"
	"github.com/nurpe/supply-settlement/internal/pdf"
	"github.com/nurpe/supply-settlement/internal/repository"
	"github.com/nurpe/supply-settlement/internal/service"
)

var rootCmd = &cobra.Command{
	Use:   "settlement-service",
	Short: "Supply settlement invoices: aggregation, PDF statements and exports",
	Long: `settlement-service turns locked supply records of an invoice period into
password protected payment statements, one per supplier organization and
one per supplier, and serves them over HTTP.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, generateCmd)
}

// app holds what every command needs after configuration is loaded.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	database  *gorm.DB
	publisher interface{ Close() error }
	invoices  *service.InvoiceService
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &app{cfg: cfg, log: log, database: database}, nil
}

// wireInvoices builds the invoice service with its collaborators.
func (a *app) wireInvoices() error {
	renderer, err := pdf.NewGenerator(pdf.FontConfig{Path: a.cfg.Invoice.FontPath})
	if err != nil {
		return fmt.Errorf("init pdf generator: %w", err)
	}

	var publisher service.Publisher = notify.Noop{}
	a.publisher = notify.Noop{}
	if a.cfg.RabbitMQ.URL != "" {
		p, err := notify.NewPublisher(a.cfg.RabbitMQ.URL, a.cfg.RabbitMQ.Exchange, logger.WithComponent(a.log, "notify"))
		if err != nil {
			return fmt.Errorf("init publisher: %w", err)
		}
		publisher, a.publisher = p, p
	} else {
		a.log.Warn().Msg("RABBITMQ_URL is empty, completion events are not published")
	}

	supplies := repository.NewSupplyRepository(a.database)
	a.invoices = service.NewInvoiceService(service.Dependencies{
		Supplies:  supplies,
		Directory: repository.NewDirectoryRepository(a.database),
		Store:     repository.NewInvoiceRepository(a.database),
		Renderer:  renderer,
		Exporter:  excel.NewGenerator(),
		Publisher: publisher,
		Passwords: password.NewGenerator(a.cfg.Invoice.PasswordLength),
	}, a.cfg, logger.WithComponent(a.log, "invoices"))
	return nil
}

func (a *app) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close publisher")
		}
	}
	if sqlDB, err := a.database.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
