package insights

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/KaramelBytes/csvinsights/internal/ai"
	"github.com/KaramelBytes/csvinsights/internal/analysis"
)

type fakeRuntime struct {
	reply   string
	err     error
	pingErr error
	calls   int
	last    ai.GenerateRequest
}

func (f *fakeRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: f.reply}}}}, nil
}

type pingingRuntime struct{ fakeRuntime }

func (p *pingingRuntime) Ping(context.Context) error { return p.pingErr }

func TestParseReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  Insights
	}{
		{
			name:  "plain text falls back",
			reply: "Here is the data: interesting trends exist",
			want: Insights{
				Trends:          []string{"Here is the data: interesting trends exist"},
				Outliers:        []string{},
				DataQuality:     []string{},
				Recommendations: []string{},
			},
		},
		{
			name:  "bare json",
			reply: `{"trends":["up"],"outliers":["x=9"],"data_quality":["1 missing"],"recommendations":["check x"]}`,
			want: Insights{
				Trends:          []string{"up"},
				Outliers:        []string{"x=9"},
				DataQuality:     []string{"1 missing"},
				Recommendations: []string{"check x"},
			},
		},
		{
			name:  "json fence",
			reply: "```json\n{\"trends\": [\"a\", \"b\"]}\n```",
			want: Insights{
				Trends:          []string{"a", "b"},
				Outliers:        []string{},
				DataQuality:     []string{},
				Recommendations: []string{},
			},
		},
		{
			name:  "plain fence with odd values",
			reply: "  ```\n{\"trends\": \"single\", \"outliers\": [{\"row\": 3}, 4, null, \"\"], \"data_quality\": null}\n```  ",
			want: Insights{
				Trends:          []string{"single"},
				Outliers:        []string{`{"row":3}`, "4"},
				DataQuality:     []string{},
				Recommendations: []string{},
			},
		},
		{
			name:  "json array is not an object",
			reply: `["a","b"]`,
			want: Insights{
				Trends:          []string{`["a","b"]`},
				Outliers:        []string{},
				DataQuality:     []string{},
				Recommendations: []string{},
			},
		},
		{
			name:  "trailing prose after json",
			reply: `{"trends":["a"]} and more`,
			want: Insights{
				Trends:          []string{`{"trends":["a"]} and more`},
				Outliers:        []string{},
				DataQuality:     []string{},
				Recommendations: []string{},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseReply(tt.reply)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseReply = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestInsightsSerializeEmptyArrays(t *testing.T) {
	b, err := json.Marshal(ParseReply("nothing structured"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"trends":["nothing structured"],"outliers":[],"data_quality":[],"recommendations":[]}`
	if string(b) != want {
		t.Fatalf("json = %s", b)
	}
}

func TestBuildPrompt(t *testing.T) {
	var preview []json.RawMessage
	for _, r := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`, `{"n":4}`, `{"n":5}`, `{"n":6}`} {
		preview = append(preview, json.RawMessage(r))
	}
	req := Request{
		Filename:    "sales.csv",
		Rows:        6,
		Columns:     1,
		ColumnNames: []string{"n", "m"},
		Stats:       json.RawMessage(`{"numeric_columns":[],"missing_values":{"n":0}}`),
		Preview:     preview,
	}
	p := BuildPrompt(req)
	for _, want := range []string{
		"Filename: sales.csv\nRows: 6\nColumns: 1\nColumn Names: n, m\n",
		"Statistics:\n{\n  \"numeric_columns\": [],\n  \"missing_values\": {\n    \"n\": 0\n  }\n}",
		"Sample Data (first few rows):\n[\n  {\n    \"n\": 1\n  },",
		"Each should be an array of strings.",
	} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
	if strings.Contains(p, `"n": 6`) {
		t.Fatalf("prompt should embed only 5 preview rows:\n%s", p)
	}
	if BuildPrompt(req) != p {
		t.Fatalf("prompt not deterministic")
	}
}

func TestRequestNormalize(t *testing.T) {
	var req Request
	req.Normalize()
	if req.Filename != DefaultFilename || req.ColumnNames == nil || string(req.Stats) != "{}" {
		t.Fatalf("normalized = %+v", req)
	}
	p := BuildPrompt(req)
	if !strings.Contains(p, "Statistics:\n{}") || !strings.Contains(p, "Sample Data (first few rows):\n[]") {
		t.Fatalf("empty prompt sections wrong:\n%s", p)
	}
}

func TestRequesterGenerate(t *testing.T) {
	rt := &fakeRuntime{reply: "```json\n{\"trends\":[\"rising\"]}\n```"}
	r := NewWithRuntime(rt, ai.ProviderGemini, "gemini-2.5-flash", nil)
	got, err := r.Generate(context.Background(), Request{Rows: 2, Columns: 2, ColumnNames: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !reflect.DeepEqual(got.Trends, []string{"rising"}) || got.Outliers == nil {
		t.Fatalf("insights = %#v", got)
	}
	if rt.calls != 1 || rt.last.Model != "gemini-2.5-flash" || len(rt.last.Messages) != 1 {
		t.Fatalf("runtime call = %d %+v", rt.calls, rt.last)
	}
	if !strings.Contains(rt.last.Messages[0].Content, "Filename: unknown.csv") {
		t.Fatalf("default filename not used in prompt")
	}
}

func TestRequesterGenerateError(t *testing.T) {
	cause := &ai.ServerError{APIError: &ai.APIError{StatusCode: 503, Message: "overloaded"}}
	rt := &fakeRuntime{err: cause}
	r := NewWithRuntime(rt, ai.ProviderGemini, "gemini-2.5-flash", nil)
	_, err := r.Generate(context.Background(), Request{})
	var ge *GenerationError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GenerationError, got %T %v", err, err)
	}
	if !strings.HasPrefix(err.Error(), "Gemini API error: ") {
		t.Fatalf("message = %q", err.Error())
	}
	var se *ai.ServerError
	if !errors.As(err, &se) {
		t.Fatalf("cause not preserved: %v", err)
	}
	if rt.calls != 1 {
		t.Fatalf("calls = %d, want exactly one attempt", rt.calls)
	}
}

func TestRequesterMissingKey(t *testing.T) {
	r := New(Config{Provider: "gemini", Model: "gemini-2.5-flash"}, nil)
	if got := r.Check(context.Background()); got != "unhealthy: API key not configured" {
		t.Fatalf("Check = %q", got)
	}
	_, err := r.Generate(context.Background(), Request{})
	if !errors.Is(err, ai.ErrNotConfigured) {
		t.Fatalf("Generate err = %v", err)
	}
	if err.Error() != "Gemini API error: API key not configured" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestRequesterCheck(t *testing.T) {
	ok := &pingingRuntime{}
	if got := NewWithRuntime(ok, ai.ProviderOllama, "llama3", nil).Check(context.Background()); got != "healthy" {
		t.Fatalf("Check = %q", got)
	}
	if ok.calls != 0 {
		t.Fatalf("pinger should not generate")
	}
	down := &pingingRuntime{fakeRuntime{pingErr: errors.New("connection refused")}}
	if got := NewWithRuntime(down, ai.ProviderOllama, "llama3", nil).Check(context.Background()); got != "unhealthy: connection refused" {
		t.Fatalf("Check = %q", got)
	}
	plain := &fakeRuntime{reply: "ok"}
	if got := NewWithRuntime(plain, ai.ProviderGemini, "m", nil).Check(context.Background()); got != "healthy" || plain.calls != 1 {
		t.Fatalf("Check = %q calls=%d", got, plain.calls)
	}
	if got := New(Config{Provider: "bogus"}, nil).Check(context.Background()); !strings.HasPrefix(got, "unhealthy: unknown llm provider") {
		t.Fatalf("Check = %q", got)
	}
}

func TestRequestFromProfile(t *testing.T) {
	_, p, err := analysis.ProfileCSV("people.csv", []byte("name,age\nAda,36\nBob,\n"), analysis.DefaultOptions())
	if err != nil {
		t.Fatalf("ProfileCSV: %v", err)
	}
	req, err := RequestFromProfile(p)
	if err != nil {
		t.Fatalf("RequestFromProfile: %v", err)
	}
	if req.Filename != "people.csv" || req.Rows != 2 || req.Columns != 2 || len(req.Preview) != 2 {
		t.Fatalf("req = %+v", req)
	}
	if string(req.Preview[1]) != `{"name":"Bob","age":null}` {
		t.Fatalf("preview[1] = %s", req.Preview[1])
	}
	if !strings.Contains(string(req.Stats), `"missing_values":{"age":1}`) {
		t.Fatalf("stats = %s", req.Stats)
	}
	if !strings.Contains(BuildPrompt(req), "Column Names: name, age") {
		t.Fatalf("prompt missing column names")
	}
}
