package services

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/KaramelBytes/csvinsights/internal/ctxutil"
	"github.com/KaramelBytes/csvinsights/internal/dbctx"
	"github.com/KaramelBytes/csvinsights/internal/insights"
	"github.com/KaramelBytes/csvinsights/internal/logger"
	"github.com/KaramelBytes/csvinsights/internal/store"
)

// InsightGenerator is the part of insights.Requester the services use.
type InsightGenerator interface {
	Generate(ctx context.Context, req insights.Request) (insights.Insights, error)
	Check(ctx context.Context) string
}

// PersistError reports a report that was generated but could not be saved.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return e.Err.Error() }

func (e *PersistError) Unwrap() error { return e.Err }

type ReportService interface {
	// GenerateReport asks the generator for insights and stores the report.
	// Cancelling ctx aborts neither the generation call nor the write.
	GenerateReport(ctx context.Context, req insights.Request) (*store.Report, insights.Insights, error)
	ListRecent(ctx context.Context, limit int) ([]*store.Report, error)
	Get(ctx context.Context, id int64) (*store.Report, error)
	Delete(ctx context.Context, id int64) error
}

type reportService struct {
	db        *gorm.DB
	log       *logger.Logger
	reports   store.ReportRepo
	generator InsightGenerator
}

func NewReportService(db *gorm.DB, log *logger.Logger, reports store.ReportRepo, generator InsightGenerator) ReportService {
	if log == nil {
		log = logger.Nop()
	}
	return &reportService{
		db:        db,
		log:       log.With("service", "ReportService"),
		reports:   reports,
		generator: generator,
	}
}

func (s *reportService) GenerateReport(ctx context.Context, req insights.Request) (*store.Report, insights.Insights, error) {
	ctx = context.WithoutCancel(ctx)
	req.Normalize()
	out, err := s.generator.Generate(ctx, req)
	if err != nil {
		return nil, insights.Insights{}, err
	}

	names, err := json.Marshal(req.ColumnNames)
	if err != nil {
		return nil, insights.Insights{}, fmt.Errorf("encode column names: %w", err)
	}
	body, err := json.Marshal(out)
	if err != nil {
		return nil, insights.Insights{}, fmt.Errorf("encode insights: %w", err)
	}
	row := &store.Report{
		Filename:     req.Filename,
		Rows:         req.Rows,
		Columns:      req.Columns,
		ColumnNames:  datatypes.JSON(names),
		SummaryStats: datatypes.JSON(req.Stats),
		Insights:     datatypes.JSON(body),
	}

	var created *store.Report
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		created, txErr = s.reports.Create(dbctx.Context{Ctx: ctx, Tx: tx}, row)
		return txErr
	})
	if err != nil {
		s.log.Error("report not saved", append([]interface{}{"filename", req.Filename, "error", err}, ctxutil.LogFields(ctx)...)...)
		return nil, insights.Insights{}, &PersistError{Err: err}
	}
	s.log.Info("report saved", append([]interface{}{"id", created.ID, "filename", created.Filename}, ctxutil.LogFields(ctx)...)...)
	return created, out, nil
}

func (s *reportService) ListRecent(ctx context.Context, limit int) ([]*store.Report, error) {
	return s.reports.ListRecent(dbctx.Context{Ctx: ctx}, limit)
}

func (s *reportService) Get(ctx context.Context, id int64) (*store.Report, error) {
	return s.reports.GetByID(dbctx.Context{Ctx: ctx}, id)
}

func (s *reportService) Delete(ctx context.Context, id int64) error {
	if err := s.reports.Delete(dbctx.Context{Ctx: ctx}, id); err != nil {
		return err
	}
	s.log.Info("report deleted", append([]interface{}{"id", id}, ctxutil.LogFields(ctx)...)...)
	return nil
}
