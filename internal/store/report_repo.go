package store

import (
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/KaramelBytes/csvinsights/internal/dbctx"
	"github.com/KaramelBytes/csvinsights/internal/logger"
)

// ErrNotFound is returned when no report has the requested id.
var ErrNotFound = errors.New("report not found")

// DefaultRecentLimit is how many reports ListRecent returns by default.
const DefaultRecentLimit = 5

type ReportRepo interface {
	Create(dbc dbctx.Context, row *Report) (*Report, error)
	ListRecent(dbc dbctx.Context, limit int) ([]*Report, error)
	GetByID(dbc dbctx.Context, id int64) (*Report, error)
	Delete(dbc dbctx.Context, id int64) error
}

type reportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReportRepo(db *gorm.DB, baseLog *logger.Logger) ReportRepo {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &reportRepo{db: db, log: baseLog.With("repo", "ReportRepo")}
}

// Create assigns id and created_at. Empty JSON columns are stored as their
// empty literal so reads never see NULL.
func (r *reportRepo) Create(dbc dbctx.Context, row *Report) (*Report, error) {
	if row == nil {
		return nil, errors.New("nil report")
	}
	row.ID = 0
	row.CreatedAt = r.db.NowFunc()
	row.ColumnNames = orEmpty(row.ColumnNames, "[]")
	row.SummaryStats = orEmpty(row.SummaryStats, "{}")
	row.Insights = orEmpty(row.Insights, "{}")
	if err := dbc.Handle(r.db).Create(row).Error; err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	r.log.Debug("report created", "id", row.ID, "filename", row.Filename)
	return row, nil
}

// ListRecent returns the newest reports first; insertion order breaks ties.
func (r *reportRepo) ListRecent(dbc dbctx.Context, limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	var out []*Report
	err := dbc.Handle(r.db).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}

func (r *reportRepo) GetByID(dbc dbctx.Context, id int64) (*Report, error) {
	var row Report
	err := dbc.Handle(r.db).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %d: %w", id, err)
	}
	return &row, nil
}

func (r *reportRepo) Delete(dbc dbctx.Context, id int64) error {
	res := dbc.Handle(r.db).Where("id = ?", id).Delete(&Report{})
	if res.Error != nil {
		return fmt.Errorf("delete report %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	r.log.Debug("report deleted", "id", id)
	return nil
}

func orEmpty(j datatypes.JSON, empty string) datatypes.JSON {
	if len(j) == 0 || string(j) == "null" {
		return datatypes.JSON(empty)
	}
	return j
}
