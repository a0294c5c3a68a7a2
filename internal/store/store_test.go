package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/KaramelBytes/csvinsights/internal/dbctx"
	"github.com/KaramelBytes/csvinsights/internal/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), log)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func bg() dbctx.Context { return dbctx.Context{Ctx: context.Background()} }

func TestOpenRejectsUnknownScheme(t *testing.T) {
	for _, url := range []string{"", "mysql://u:p@h/db", "sqlite://"} {
		if _, err := Open(url, nil); err == nil {
			t.Fatalf("Open(%q) should fail", url)
		}
	}
}

func TestDialectorForSchemes(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost:5432/db":   "postgres",
		"postgresql://u:p@localhost:5432/db": "postgres",
		"sqlite://reports.db":                "sqlite",
		"file:reports.db?cache=shared":       "sqlite",
	}
	for url, want := range cases {
		d, _, err := dialectorFor(url)
		if err != nil {
			t.Fatalf("dialectorFor(%q): %v", url, err)
		}
		if d.Name() != want {
			t.Fatalf("dialectorFor(%q) = %s, want %s", url, d.Name(), want)
		}
	}
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewReportRepo(db, nil)

	names := datatypes.JSON(`["name","age"]`)
	stats := datatypes.JSON(`{"numeric_columns":[{"name":"age","min":36,"max":36,"mean":36,"median":36}],"categorical_columns":[],"missing_values":{"age":1}}`)
	ins := datatypes.JSON(`{"trends":["t"],"outliers":[],"data_quality":[],"recommendations":["r"]}`)
	created, err := repo.Create(bg(), &Report{
		Filename:     "people.csv",
		Rows:         2,
		Columns:      2,
		ColumnNames:  names,
		SummaryStats: stats,
		Insights:     ins,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 || created.CreatedAt.IsZero() {
		t.Fatalf("id/created_at not assigned: %+v", created)
	}
	if created.CreatedAt.Location() != time.UTC {
		t.Fatalf("created_at not UTC: %v", created.CreatedAt)
	}

	got, err := repo.GetByID(bg(), created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if string(got.ColumnNames) != string(names) || string(got.SummaryStats) != string(stats) || string(got.Insights) != string(ins) {
		t.Fatalf("json columns changed:\n%s\n%s\n%s", got.ColumnNames, got.SummaryStats, got.Insights)
	}
	if got.Filename != "people.csv" || got.Rows != 2 || got.Columns != 2 {
		t.Fatalf("got = %+v", got)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, created.CreatedAt)
	}
}

func TestCreatedAtMicrosecondPrecision(t *testing.T) {
	db := testDB(t)
	repo := NewReportRepo(db, nil)
	for i := 0; i < 5; i++ {
		created, err := repo.Create(bg(), &Report{Filename: "p.csv"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if created.CreatedAt.Nanosecond()%1000 != 0 {
			t.Fatalf("created_at has sub-microsecond part: %v", created.CreatedAt)
		}
		got, err := repo.GetByID(bg(), created.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if !got.CreatedAt.Equal(created.CreatedAt) {
			t.Fatalf("created_at = %v, want %v", got.CreatedAt, created.CreatedAt)
		}
	}
	if now := nowUTC(); now.Location() != time.UTC || now.Nanosecond()%1000 != 0 {
		t.Fatalf("nowUTC = %v", now)
	}
}

func TestCreateFillsEmptyJSON(t *testing.T) {
	db := testDB(t)
	repo := NewReportRepo(db, nil)
	created, err := repo.Create(bg(), &Report{Filename: "x.csv"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByID(bg(), created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if string(got.ColumnNames) != "[]" || string(got.SummaryStats) != "{}" || string(got.Insights) != "{}" {
		t.Fatalf("empty json = %s %s %s", got.ColumnNames, got.SummaryStats, got.Insights)
	}
}

func TestListRecent(t *testing.T) {
	db := testDB(t)
	repo := NewReportRepo(db, nil)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	// inserted directly so timestamps (including a tie) are controlled
	for i := 0; i < 7; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		if i == 6 {
			at = base.Add(5 * time.Minute)
		}
		row := &Report{Filename: fmt.Sprintf("f%d.csv", i), CreatedAt: at,
			ColumnNames: datatypes.JSON("[]"), SummaryStats: datatypes.JSON("{}"), Insights: datatypes.JSON("{}")}
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	list, err := repo.ListRecent(bg(), 0)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(list) != DefaultRecentLimit {
		t.Fatalf("len = %d, want %d", len(list), DefaultRecentLimit)
	}
	want := []string{"f6.csv", "f5.csv", "f4.csv", "f3.csv", "f2.csv"}
	for i, r := range list {
		if r.Filename != want[i] {
			t.Fatalf("order[%d] = %s, want %s", i, r.Filename, want[i])
		}
		if i > 0 && r.CreatedAt.After(list[i-1].CreatedAt) {
			t.Fatalf("not sorted by created_at desc")
		}
	}

	two, err := repo.ListRecent(bg(), 2)
	if err != nil || len(two) != 2 {
		t.Fatalf("limit 2 = %d, %v", len(two), err)
	}
}

func TestGetAndDeleteNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewReportRepo(db, nil)

	if _, err := repo.GetByID(bg(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID missing = %v", err)
	}
	created, err := repo.Create(bg(), &Report{Filename: "d.csv"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Delete(bg(), created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(bg(), created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetByID(bg(), created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID after delete = %v", err)
	}
}

func TestCreateInsideTransaction(t *testing.T) {
	db := testDB(t)
	repo := NewReportRepo(db, nil)

	boom := errors.New("boom")
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := repo.Create(dbctx.Context{Ctx: context.Background(), Tx: tx}, &Report{Filename: "rolled.csv"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("transaction err = %v", err)
	}
	list, err := repo.ListRecent(bg(), 5)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("rolled back report persisted: %+v", list)
	}
}

func TestPing(t *testing.T) {
	db := testDB(t)
	if err := Ping(context.Background(), db); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	sqlDB, _ := db.DB()
	_ = sqlDB.Close()
	if err := Ping(context.Background(), db); err == nil {
		t.Fatalf("Ping on closed db should fail")
	}
}
