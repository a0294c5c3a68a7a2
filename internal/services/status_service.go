package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/KaramelBytes/csvinsights/internal/store"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy: "
)

// Status is the health snapshot served by the status endpoint.
type Status struct {
	Backend   string    `json:"backend"`
	Database  string    `json:"database"`
	LLM       string    `json:"llm"`
	Timestamp time.Time `json:"timestamp"`
}

type StatusService interface {
	Check(ctx context.Context) Status
}

type statusService struct {
	db        *gorm.DB
	generator InsightGenerator
	now       func() time.Time
}

func NewStatusService(db *gorm.DB, generator InsightGenerator) StatusService {
	return &statusService{db: db, generator: generator, now: time.Now}
}

// Check probes the database and the LLM concurrently. A failing probe
// shows up in its own field and never fails the whole check.
func (s *statusService) Check(ctx context.Context) Status {
	st := Status{Backend: statusHealthy}
	var g errgroup.Group
	g.Go(func() error {
		st.Database = s.checkDatabase(ctx)
		return nil
	})
	g.Go(func() error {
		st.LLM = s.checkLLM(ctx)
		return nil
	})
	_ = g.Wait()
	st.Timestamp = s.now().UTC()
	return st
}

func (s *statusService) checkDatabase(ctx context.Context) (status string) {
	defer func() {
		if p := recover(); p != nil {
			status = fmt.Sprintf("%s%v", statusUnhealthy, p)
		}
	}()
	if s.db == nil {
		return statusUnhealthy + "database not configured"
	}
	if err := store.Ping(ctx, s.db); err != nil {
		return statusUnhealthy + err.Error()
	}
	return statusHealthy
}

func (s *statusService) checkLLM(ctx context.Context) string {
	if s.generator == nil {
		return statusUnhealthy + "llm not configured"
	}
	return s.generator.Check(ctx)
}
