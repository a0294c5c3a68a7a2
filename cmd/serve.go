package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/csvinsights/internal/analysis"
	httpapi "github.com/KaramelBytes/csvinsights/internal/http"
	httpH "github.com/KaramelBytes/csvinsights/internal/http/handlers"
	"github.com/KaramelBytes/csvinsights/internal/observability"
	"github.com/KaramelBytes/csvinsights/internal/services"
	"github.com/KaramelBytes/csvinsights/internal/store"
)

const serviceName = "csvinsights"

var (
	serveAddr    string
	serveMaxRows int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") && serveAddr != "" {
			c.HTTPAddr = serveAddr
		}
		log, err := newLogger(c, false)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		traceService := ""
		if shutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
			ServiceName: serviceName,
			Environment: c.LogMode,
			Version:     httpH.APIVersion,
		}); shutdown != nil {
			traceService = serviceName
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(sctx)
			}()
		}

		db, err := openStore(c, log)
		if err != nil {
			return err
		}
		defer closeStore(db)

		requester := newRequester(c, log)
		reports := services.NewReportService(db, log, store.NewReportRepo(db, log), requester)

		opt := analysis.DefaultOptions()
		opt.MaxRows = serveMaxRows

		srv := httpapi.NewServer(httpapi.RouterConfig{
			Log:           log,
			CORSOrigins:   c.Origins(),
			TraceService:  traceService,
			CSVHandler:    httpH.NewCSVHandler(log, reports, opt, c.MaxUploadBytes()),
			ReportHandler: httpH.NewReportHandler(log, reports),
			StatusHandler: httpH.NewStatusHandler(services.NewStatusService(db, requester)),
		})
		log.Info("starting csvinsights api",
			"addr", c.HTTPAddr,
			"llm_provider", requester.Provider(),
			"llm_model", c.LLMModel,
			"cors_origins", c.Origins(),
		)
		return srv.Run(ctx, c.HTTPAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides HTTP_ADDR)")
	serveCmd.Flags().IntVar(&serveMaxRows, "max-rows", 0, "maximum data rows accepted per upload (0 = unlimited)")
}
