package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/csvinsights/internal/http/response"
	"github.com/KaramelBytes/csvinsights/internal/logger"
	"github.com/KaramelBytes/csvinsights/internal/services"
	"github.com/KaramelBytes/csvinsights/internal/store"
)

type ReportHandler struct {
	log     *logger.Logger
	reports services.ReportService
}

func NewReportHandler(log *logger.Logger, reports services.ReportService) *ReportHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ReportHandler{log: log.With("handler", "ReportHandler"), reports: reports}
}

// ReportSummary is one entry of the recent reports list.
type ReportSummary struct {
	ID        int64           `json:"id"`
	Filename  string          `json:"filename"`
	Rows      int             `json:"rows"`
	Columns   int             `json:"columns"`
	CreatedAt time.Time       `json:"created_at"`
	Insights  json.RawMessage `json:"insights"`
}

// ReportDetail is a full report as returned by GET /api/reports/:id.
type ReportDetail struct {
	ID          int64           `json:"id"`
	Filename    string          `json:"filename"`
	Rows        int             `json:"rows"`
	Columns     int             `json:"columns"`
	ColumnNames json.RawMessage `json:"column_names"`
	Stats       json.RawMessage `json:"stats"`
	Insights    json.RawMessage `json:"insights"`
	CreatedAt   time.Time       `json:"created_at"`
}

func NewReportDetail(r *store.Report) ReportDetail {
	return ReportDetail{
		ID:          r.ID,
		Filename:    r.Filename,
		Rows:        r.Rows,
		Columns:     r.Columns,
		ColumnNames: rawOr(r.ColumnNames, "[]"),
		Stats:       rawOr(r.SummaryStats, "{}"),
		Insights:    rawOr(r.Insights, "{}"),
		CreatedAt:   r.CreatedAt,
	}
}

func (h *ReportHandler) List(c *gin.Context) {
	rows, err := h.reports.ListRecent(c.Request.Context(), store.DefaultRecentLimit)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	out := make([]ReportSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, ReportSummary{
			ID:        r.ID,
			Filename:  r.Filename,
			Rows:      r.Rows,
			Columns:   r.Columns,
			CreatedAt: r.CreatedAt,
			Insights:  rawOr(r.Insights, "{}"),
		})
	}
	response.RespondOK(c, out)
}

func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	r, err := h.reports.Get(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	response.RespondOK(c, NewReportDetail(r))
}

func (h *ReportHandler) Delete(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	if err := h.reports.Delete(c.Request.Context(), id); err != nil {
		respondStoreError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Report deleted successfully", "id": id})
}

func reportID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.RespondAPIError(c, response.Validation("Invalid report id: "+c.Param("id"), err))
		return 0, false
	}
	return id, true
}

func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		response.RespondAPIError(c, response.NotFound("Report not found"))
		return
	}
	response.RespondAPIError(c, err)
}

func rawOr(b []byte, empty string) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return json.RawMessage(empty)
	}
	return json.RawMessage(b)
}
