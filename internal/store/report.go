package store

import (
	"time"

	"gorm.io/datatypes"
)

// Report is one persisted analysis. Rows are write-once: there is no update
// path, only create and delete.
type Report struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Filename string `gorm:"type:varchar(255);not null" json:"filename"`
	Rows     int    `gorm:"column:rows" json:"rows"`
	Columns  int    `gorm:"column:columns" json:"columns"`
	// JSON columns are stored as text exactly as written.
	ColumnNames  datatypes.JSON `gorm:"column:column_names;type:text" json:"column_names"`
	SummaryStats datatypes.JSON `gorm:"column:summary_stats;type:text" json:"stats"`
	Insights     datatypes.JSON `gorm:"column:insights;type:text" json:"insights"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
}

func (Report) TableName() string { return "reports" }
