package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"menuetl/internal/extract"
	"menuetl/internal/llm"
	"menuetl/internal/store"
)

type fakeSource struct {
	rows []extract.RawRow
	err  error
}

func (f *fakeSource) FetchMenuBatch(_ context.Context, start, end int, source string) ([]extract.RawRow, error) {
	return f.rows, f.err
}

type fakeSink struct {
	err      error
	got      []extract.Record
	source   string
	truncate bool
}

func (f *fakeSink) UploadCleaned(_ context.Context, records []extract.Record, source string, truncate bool) (int, error) {
	f.got = records
	f.source = source
	f.truncate = truncate
	if f.err != nil {
		return 0, f.err
	}
	return len(records), nil
}

type fakeRunLog struct {
	entries []store.RunLogEntry
	err     error
}

func (f *fakeRunLog) InsertRunLog(_ context.Context, e store.RunLogEntry) error {
	f.entries = append(f.entries, e)
	return f.err
}

type stubClassifier struct {
	results []llm.RowResult
	err     error
}

func (s *stubClassifier) ClassifyBatch(context.Context, string, any) ([]llm.RowResult, error) {
	return s.results, s.err
}

func sampleRows() []extract.RawRow {
	return []extract.RawRow{{
		"row_id":          "001",
		"item_id":         "1",
		"restaurant_name": "Pizza World",
		"restaurant_type": "Fast Food, Pizza",
		"item_name":       "Pepperoni Pizza Combo",
	}}
}

func statuses(entries []store.RunLogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Status
	}
	return out
}

func TestRun_Success(t *testing.T) {
	src := &fakeSource{rows: sampleRows()}
	sink := &fakeSink{}
	logs := &fakeRunLog{}
	cls := &stubClassifier{results: []llm.RowResult{{
		DishBase: "pizza", DishFlavor: []string{"pepperoni"}, IsCombo: true, RestaurantTypeStd: "pizza restaurant",
	}}}

	etl := NewETLFromParts(src, sink, logs, cls, true, nil)
	res := etl.Run(context.Background(), 1, 3, "training")

	if res.Status != StatusSuccess || res.Processed != 1 || res.Message != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(sink.got) != 1 || sink.got[0].ItemID != "1" || sink.source != "training" || !sink.truncate {
		t.Fatalf("unexpected sink call: records=%+v source=%q truncate=%v", sink.got, sink.source, sink.truncate)
	}

	got := statuses(logs.entries)
	if len(got) != 2 || got[0] != StatusStarted || got[1] != StatusSuccess {
		t.Fatalf("unexpected log statuses: %v", got)
	}
	if logs.entries[1].StartRow != 1 || logs.entries[1].EndRow != 3 {
		t.Fatalf("unexpected log range: %+v", logs.entries[1])
	}
	if !strings.Contains(string(logs.entries[1].Metadata), `"processed":1`) {
		t.Fatalf("expected processed count in success metadata, got %s", logs.entries[1].Metadata)
	}
}

func TestRun_SourceErrorLogged(t *testing.T) {
	src := &fakeSource{err: store.ErrInvalidSource}
	sink := &fakeSink{}
	logs := &fakeRunLog{}

	etl := NewETLFromParts(src, sink, logs, &stubClassifier{}, false, nil)
	res := etl.Run(context.Background(), 1, 3, "prod")

	if res.Status != StatusError || !strings.Contains(res.Message, "invalid source") {
		t.Fatalf("unexpected result: %+v", res)
	}
	got := statuses(logs.entries)
	if len(got) != 2 || got[1] != StatusError {
		t.Fatalf("unexpected log statuses: %v", got)
	}
	if sink.got != nil {
		t.Fatalf("expected no upload after source failure")
	}
}

func TestRun_ValidationErrorCarriesOffendingValues(t *testing.T) {
	src := &fakeSource{rows: sampleRows()}
	logs := &fakeRunLog{}
	cls := &stubClassifier{results: []llm.RowResult{{RestaurantTypeStd: "spaceship diner"}}}

	etl := NewETLFromParts(src, &fakeSink{}, logs, cls, false, nil)
	res := etl.Run(context.Background(), 1, 3, "training")

	if res.Status != StatusError || !strings.Contains(res.Message, "spaceship diner") {
		t.Fatalf("unexpected result: %+v", res)
	}

	last := logs.entries[len(logs.entries)-1]
	if !strings.Contains(string(last.Metadata), "spaceship diner") {
		t.Fatalf("expected offending values in error metadata, got %s", last.Metadata)
	}
}

func TestRun_SinkErrorLogged(t *testing.T) {
	src := &fakeSource{rows: sampleRows()}
	sink := &fakeSink{err: errors.New("upload failed: duplicate key")}
	logs := &fakeRunLog{}
	cls := &stubClassifier{results: []llm.RowResult{{RestaurantTypeStd: "pizza restaurant"}}}

	etl := NewETLFromParts(src, sink, logs, cls, false, nil)
	res := etl.Run(context.Background(), 1, 3, "training")

	if res.Status != StatusError || !strings.Contains(res.Message, "duplicate key") {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRun_LogFailureDoesNotAbort(t *testing.T) {
	src := &fakeSource{rows: sampleRows()}
	logs := &fakeRunLog{err: errors.New("log table unavailable")}
	cls := &stubClassifier{results: []llm.RowResult{{RestaurantTypeStd: "pizza restaurant"}}}

	etl := NewETLFromParts(src, &fakeSink{}, logs, cls, false, nil)
	res := etl.Run(context.Background(), 1, 3, "training")

	if res.Status != StatusSuccess {
		t.Fatalf("expected success despite log failures, got %+v", res)
	}
}
