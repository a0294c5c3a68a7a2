package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/csvinsights/internal/analysis"
	"github.com/KaramelBytes/csvinsights/internal/ctxutil"
	"github.com/KaramelBytes/csvinsights/internal/http/response"
	"github.com/KaramelBytes/csvinsights/internal/insights"
	"github.com/KaramelBytes/csvinsights/internal/logger"
	"github.com/KaramelBytes/csvinsights/internal/services"
	"github.com/KaramelBytes/csvinsights/internal/utils"
)

const uploadField = "file"

type CSVHandler struct {
	log      *logger.Logger
	reports  services.ReportService
	options  analysis.Options
	maxBytes int64
}

func NewCSVHandler(log *logger.Logger, reports services.ReportService, opt analysis.Options, maxBytes int64) *CSVHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &CSVHandler{
		log:      log.With("handler", "CSVHandler"),
		reports:  reports,
		options:  opt,
		maxBytes: maxBytes,
	}
}

// InsightsResponse is returned after a report has been generated and saved.
type InsightsResponse struct {
	ReportID  int64             `json:"report_id"`
	Insights  insights.Insights `json:"insights"`
	CreatedAt time.Time         `json:"created_at"`
}

// Upload profiles a CSV sent as multipart field "file".
func (h *CSVHandler) Upload(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}
	fh, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondError(c, http.StatusRequestEntityTooLarge,
				fmt.Errorf("File too large (max %d MB)", h.maxBytes>>20))
			return
		}
		response.RespondAPIError(c, response.Validation("No file uploaded", err))
		return
	}
	if !utils.HasCSVExtension(fh.Filename) {
		response.RespondAPIError(c, response.Validation("Only CSV files are allowed", nil))
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.RespondAPIError(c, response.Validation("Error parsing CSV: "+err.Error(), err))
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		response.RespondAPIError(c, response.Validation("Error parsing CSV: "+err.Error(), err))
		return
	}

	_, profile, err := analysis.ProfileCSV(fh.Filename, raw, h.options)
	if err != nil {
		response.RespondAPIError(c, response.Validation("Error parsing CSV: "+err.Error(), err))
		return
	}
	h.log.Debug("csv profiled", append([]interface{}{
		"filename", profile.Filename,
		"rows", profile.Rows,
		"columns", profile.Columns,
		"encoding", profile.Encoding,
	}, ctxutil.LogFields(c.Request.Context())...)...)
	response.RespondOK(c, profile)
}

// Insights generates insights for a profile payload and persists the report.
func (h *CSVHandler) Insights(c *gin.Context) {
	var req insights.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, response.Validation("Invalid request body: "+err.Error(), err))
		return
	}
	report, out, err := h.reports.GenerateReport(c.Request.Context(), req)
	if err != nil {
		response.RespondAPIError(c, response.External("Error generating insights: "+err.Error(), err))
		return
	}
	response.RespondOK(c, InsightsResponse{
		ReportID:  report.ID,
		Insights:  out,
		CreatedAt: report.CreatedAt,
	})
}
