package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/KaramelBytes/csvinsights/internal/http/handlers"
	httpMW "github.com/KaramelBytes/csvinsights/internal/http/middleware"
	"github.com/KaramelBytes/csvinsights/internal/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	CORSOrigins []string
	// TraceService enables otelgin spans under this service name when set.
	TraceService string

	CSVHandler    *httpH.CSVHandler
	ReportHandler *httpH.ReportHandler
	StatusHandler *httpH.StatusHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.RedirectTrailingSlash = false
	r.Use(gin.Recovery())
	if cfg.TraceService != "" {
		r.Use(otelgin.Middleware(cfg.TraceService))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	if cfg.StatusHandler != nil {
		r.GET("/", cfg.StatusHandler.Root)
	}

	api := r.Group("/api")
	{
		if cfg.CSVHandler != nil {
			api.POST("/csv/upload", cfg.CSVHandler.Upload)
			api.POST("/csv/insights", cfg.CSVHandler.Insights)
		}

		if cfg.ReportHandler != nil {
			api.GET("/reports", cfg.ReportHandler.List)
			api.GET("/reports/", cfg.ReportHandler.List)
			api.GET("/reports/:id", cfg.ReportHandler.Get)
			api.DELETE("/reports/:id", cfg.ReportHandler.Delete)
		}

		if cfg.StatusHandler != nil {
			api.GET("/status", cfg.StatusHandler.Status)
			api.GET("/status/", cfg.StatusHandler.Status)
		}
	}

	return r
}
