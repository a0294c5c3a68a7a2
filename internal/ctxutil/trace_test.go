package ctxutil

import (
	"context"
	"reflect"
	"testing"
)

func TestTraceDataRoundTrip(t *testing.T) {
	ctx := context.Background()
	if GetTraceData(ctx) != nil || LogFields(ctx) != nil {
		t.Fatalf("expected no trace data on bare context")
	}
	ctx = WithTraceData(ctx, &TraceData{TraceID: "t1", RequestID: "r1"})
	if td := GetTraceData(ctx); td == nil || td.TraceID != "t1" || td.RequestID != "r1" {
		t.Fatalf("trace data = %+v", td)
	}
	want := []interface{}{"trace_id", "t1", "request_id", "r1"}
	if got := LogFields(ctx); !reflect.DeepEqual(got, want) {
		t.Fatalf("fields = %#v", got)
	}
}
