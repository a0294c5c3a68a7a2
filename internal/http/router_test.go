package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/KaramelBytes/csvinsights/internal/ai"
	"github.com/KaramelBytes/csvinsights/internal/analysis"
	httpH "github.com/KaramelBytes/csvinsights/internal/http/handlers"
	"github.com/KaramelBytes/csvinsights/internal/insights"
	"github.com/KaramelBytes/csvinsights/internal/logger"
	"github.com/KaramelBytes/csvinsights/internal/services"
	"github.com/KaramelBytes/csvinsights/internal/store"
)

type stubRuntime struct {
	reply   string
	err     error
	pingErr error
}

func (s *stubRuntime) Generate(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: s.reply}}}}, nil
}

func (s *stubRuntime) Ping(context.Context) error { return s.pingErr }

type testAPI struct {
	router *gin.Engine
	db     *gorm.DB
	rt     *stubRuntime
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log := logger.Nop()
	rt := &stubRuntime{reply: "```json\n{\"trends\":[\"ages rise\"],\"outliers\":[],\"data_quality\":[\"1 missing age\"],\"recommendations\":[\"fill ages\"]}\n```"}
	gen := insights.NewWithRuntime(rt, ai.ProviderGemini, "gemini-2.5-flash", log)
	reports := services.NewReportService(db, log, store.NewReportRepo(db, log), gen)

	router := NewRouter(RouterConfig{
		Log:           log,
		CORSOrigins:   []string{"http://localhost:3000"},
		CSVHandler:    httpH.NewCSVHandler(log, reports, analysis.DefaultOptions(), 1<<20),
		ReportHandler: httpH.NewReportHandler(log, reports),
		StatusHandler: httpH.NewStatusHandler(services.NewStatusService(db, gen)),
	})
	return &testAPI{router: router, db: db, rt: rt}
}

func (a *testAPI) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write(body); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/csv/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decode(t, rec, &body)
	return body["detail"]
}

func TestRoot(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["message"] != "CSV Insights Dashboard API" || body["version"] != "1.0.0" {
		t.Fatalf("body = %v", body)
	}
}

func TestUpload(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, uploadRequest(t, "people.CSV", []byte("name,age\nAda,36\nBob,\n")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Filename    string           `json:"filename"`
		Rows        int              `json:"rows"`
		Columns     int              `json:"columns"`
		ColumnNames []string         `json:"column_names"`
		Preview     []map[string]any `json:"preview"`
		Stats       struct {
			MissingValues map[string]int `json:"missing_values"`
		} `json:"stats"`
	}
	decode(t, rec, &body)
	if body.Filename != "people.CSV" || body.Rows != 2 || body.Columns != 2 {
		t.Fatalf("body = %+v", body)
	}
	if len(body.Preview) != 2 || body.Preview[1]["age"] != nil || body.Stats.MissingValues["age"] != 1 {
		t.Fatalf("profile = %+v", body)
	}
}

func TestUploadExtremeValues(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, uploadRequest(t, "big.csv", []byte("v\n1e308\n1.5e308\n")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Stats struct {
			NumericColumns []struct {
				Min    float64 `json:"min"`
				Max    float64 `json:"max"`
				Median float64 `json:"median"`
			} `json:"numeric_columns"`
		} `json:"stats"`
	}
	decode(t, rec, &body)
	if len(body.Stats.NumericColumns) != 1 {
		t.Fatalf("stats = %s", rec.Body.String())
	}
	ns := body.Stats.NumericColumns[0]
	if ns.Median < ns.Min || ns.Median > ns.Max {
		t.Fatalf("median %v outside [%v, %v]", ns.Median, ns.Min, ns.Max)
	}
}

func TestUploadRejects(t *testing.T) {
	api := newTestAPI(t)
	tests := []struct {
		name       string
		req        *http.Request
		wantPrefix string
	}{
		{"wrong extension", uploadRequest(t, "data.txt", []byte("a,b\n1,2\n")), "Only CSV files are allowed"},
		{"empty file", uploadRequest(t, "empty.csv", nil), "Error parsing CSV: "},
		{"ragged row", uploadRequest(t, "bad.csv", []byte("a,b\n1,2,3\n")), "Error parsing CSV: "},
		{"no file", httptest.NewRequest(http.MethodPost, "/api/csv/upload", nil), "No file uploaded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
			}
			if d := detail(t, rec); !strings.HasPrefix(d, tt.wantPrefix) {
				t.Fatalf("detail = %q, want prefix %q", d, tt.wantPrefix)
			}
		})
	}
}

func postInsights(t *testing.T, api *testAPI, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/csv/insights", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return api.do(t, req)
}

const insightsPayload = `{"filename":"people.csv","rows":2,"columns":2,"column_names":["name","age"],` +
	`"stats":{"numeric_columns":[{"name":"age","min":36,"max":36,"mean":36,"median":36}],"missing_values":{"age":1}},` +
	`"preview":[{"name":"Ada","age":36},{"name":"Bob","age":null}]}`

func TestInsightsAndReportsLifecycle(t *testing.T) {
	api := newTestAPI(t)

	rec := postInsights(t, api, insightsPayload)
	if rec.Code != http.StatusOK {
		t.Fatalf("insights status = %d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		ReportID  int64             `json:"report_id"`
		Insights  insights.Insights `json:"insights"`
		CreatedAt string            `json:"created_at"`
	}
	decode(t, rec, &created)
	if created.ReportID == 0 || created.CreatedAt == "" || created.Insights.Trends[0] != "ages rise" {
		t.Fatalf("created = %+v", created)
	}

	for _, path := range []string{"/api/reports", "/api/reports/"} {
		rec = api.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
		var list []map[string]any
		decode(t, rec, &list)
		if len(list) != 1 || list[0]["filename"] != "people.csv" {
			t.Fatalf("%s list = %v", path, list)
		}
		if _, ok := list[0]["insights"].(map[string]any); !ok {
			t.Fatalf("insights not an object: %v", list[0])
		}
	}

	path := fmt.Sprintf("/api/reports/%d", created.ReportID)
	rec = api.do(t, httptest.NewRequest(http.MethodGet, path, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got struct {
		ColumnNames json.RawMessage `json:"column_names"`
		Stats       json.RawMessage `json:"stats"`
		Rows        int             `json:"rows"`
	}
	decode(t, rec, &got)
	if string(got.ColumnNames) != `["name","age"]` {
		t.Fatalf("column_names = %s", got.ColumnNames)
	}
	if string(got.Stats) != `{"numeric_columns":[{"name":"age","min":36,"max":36,"mean":36,"median":36}],"missing_values":{"age":1}}` {
		t.Fatalf("stats changed: %s", got.Stats)
	}

	rec = api.do(t, httptest.NewRequest(http.MethodDelete, path, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	var del map[string]any
	decode(t, rec, &del)
	if del["message"] != "Report deleted successfully" || del["id"] != float64(created.ReportID) {
		t.Fatalf("delete body = %v", del)
	}

	rec = api.do(t, httptest.NewRequest(http.MethodDelete, path, nil))
	if rec.Code != http.StatusNotFound || detail(t, rec) != "Report not found" {
		t.Fatalf("second delete = %d %s", rec.Code, rec.Body.String())
	}
	rec = api.do(t, httptest.NewRequest(http.MethodGet, path, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d", rec.Code)
	}
}

func TestInsightsDefaultsAndErrors(t *testing.T) {
	api := newTestAPI(t)

	rec := postInsights(t, api, `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("empty payload status = %d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		ReportID int64 `json:"report_id"`
	}
	decode(t, rec, &created)
	var row store.Report
	if err := api.db.First(&row, created.ReportID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if row.Filename != insights.DefaultFilename || row.Rows != 0 || string(row.ColumnNames) != "[]" {
		t.Fatalf("defaults = %+v", row)
	}

	rec = postInsights(t, api, `{"rows":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed status = %d", rec.Code)
	}

	api.rt.err = &ai.ServerError{APIError: &ai.APIError{StatusCode: 503, Message: "overloaded"}}
	rec = postInsights(t, api, insightsPayload)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("ai failure status = %d", rec.Code)
	}
	if d := detail(t, rec); !strings.HasPrefix(d, "Error generating insights: Gemini API error: ") {
		t.Fatalf("detail = %q", d)
	}
	var count int64
	api.db.Model(&store.Report{}).Count(&count)
	if count != 1 {
		t.Fatalf("failed generation persisted a report: count=%d", count)
	}
}

func TestReportIDValidation(t *testing.T) {
	api := newTestAPI(t)
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := api.do(t, httptest.NewRequest(method, "/api/reports/abc", nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s non-integer id = %d", method, rec.Code)
		}
	}
	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/api/reports/424242", nil))
	if rec.Code != http.StatusNotFound || detail(t, rec) != "Report not found" {
		t.Fatalf("missing id = %d %s", rec.Code, rec.Body.String())
	}
}

func TestStatus(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/api/status", "/api/status/"} {
		rec := api.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
		var st map[string]string
		decode(t, rec, &st)
		if st["backend"] != "healthy" || st["database"] != "healthy" || st["llm"] != "healthy" || st["timestamp"] == "" {
			t.Fatalf("%s body = %v", path, st)
		}
	}

	api.rt.pingErr = errors.New("connection refused")
	sqlDB, _ := api.db.DB()
	_ = sqlDB.Close()
	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/api/status/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded status code = %d", rec.Code)
	}
	var st map[string]string
	decode(t, rec, &st)
	if st["backend"] != "healthy" || !strings.HasPrefix(st["database"], "unhealthy: ") || st["llm"] != "unhealthy: connection refused" {
		t.Fatalf("degraded body = %v", st)
	}
}

func TestRequestIDHeader(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Request-Id") == "" || rec.Header().Get("X-Trace-Id") == "" {
		t.Fatalf("missing correlation headers: %v", rec.Header())
	}
}
