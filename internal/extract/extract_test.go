package extract

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"menuetl/internal/llm"
)

// stubClassifier returns canned results and captures the payload it was
// handed so tests can assert on the wire contract.
type stubClassifier struct {
	results []llm.RowResult
	err     error

	gotSystem string
	gotRows   any
}

func (s *stubClassifier) ClassifyBatch(_ context.Context, system string, rows any) ([]llm.RowResult, error) {
	s.gotSystem = system
	s.gotRows = rows
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func exampleRow() RawRow {
	return RawRow{
		"row_id":                "001",
		"item_id":               "1",
		"restaurant_name":       "Pizza World",
		"restaurant_type":       "Fast Food, Pizza",
		"item_name":             "Pepperoni Pizza Combo",
		"menu_item_description": "Large pepperoni pizza with garlic bread and a drink",
		"menu_category":         "Combo",
	}
}

func TestRun_EndToEnd(t *testing.T) {
	stub := &stubClassifier{results: []llm.RowResult{{
		DishBase:          "pizza",
		DishFlavor:        []string{"pepperoni"},
		IsCombo:           true,
		RestaurantTypeStd: "pizza restaurant",
	}}}

	records, err := NewRunner(stub).Run(context.Background(), []RawRow{exampleRow()}, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []Record{{
		RowID:             "001",
		ItemID:            "1",
		DishBase:          "pizza",
		DishFlavor:        []string{"pepperoni"},
		IsCombo:           true,
		RestaurantTypeStd: "pizza restaurant",
	}}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("unexpected records:\ngot  %+v\nwant %+v", records, want)
	}
}

func TestRun_MissingOptionalColumnsFilled(t *testing.T) {
	row := RawRow{
		"row_id":          "7",
		"item_id":         "42",
		"restaurant_name": "Cafe X",
		"restaurant_type": "Cafe",
		"item_name":       "Latte",
	}
	stub := &stubClassifier{results: []llm.RowResult{{DishBase: "latte", RestaurantTypeStd: "cafe"}}}

	records, err := NewRunner(stub).Run(context.Background(), []RawRow{row}, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records) != 1 || records[0].ItemID != "42" {
		t.Fatalf("unexpected records: %+v", records)
	}

	sent, ok := stub.gotRows.([]MenuRow)
	if !ok {
		t.Fatalf("expected []MenuRow payload, got %T", stub.gotRows)
	}
	if sent[0].MenuItemDescription != "" || sent[0].MenuCategory != "" {
		t.Fatalf("expected empty defaults for missing optional columns, got %+v", sent[0])
	}
}

func TestRun_ColumnMappingAndProjection(t *testing.T) {
	row := RawRow{
		"id":              "9",
		"row_id":          "002",
		"venue":           "Noodle Bar",
		"restaurant_type": "Asian",
		"menu_name":       "Beef Lo Mein",
		"internal_score":  "0.93",
	}
	mapping := map[string]string{
		"id":        "item_id",
		"venue":     "restaurant_name",
		"menu_name": "item_name",
	}
	stub := &stubClassifier{results: []llm.RowResult{{DishBase: "lo mein", RestaurantTypeStd: "asian restaurant"}}}

	records, err := NewRunner(stub).Run(context.Background(), []RawRow{row}, Options{ColumnMapping: mapping})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if records[0].ItemID != "9" || records[0].RowID != "002" {
		t.Fatalf("expected mapped identifiers carried through, got %+v", records[0])
	}

	// The payload must carry exactly the expected schema; extra caller
	// columns must not leak to the model.
	payload, err := json.Marshal(stub.gotRows)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var sent []map[string]any
	if err := json.Unmarshal(payload, &sent); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(sent[0]) != len(expectedColumns) {
		t.Fatalf("expected %d payload columns, got %d: %v", len(expectedColumns), len(sent[0]), sent[0])
	}
	if _, leaked := sent[0]["internal_score"]; leaked {
		t.Fatalf("unexpected extra column in payload: %v", sent[0])
	}
	if sent[0]["item_name"] != "Beef Lo Mein" {
		t.Fatalf("expected renamed column value in payload, got %v", sent[0])
	}
}

func TestRun_InvalidTypeRejectsWholeBatch(t *testing.T) {
	stub := &stubClassifier{results: []llm.RowResult{
		{DishBase: "pizza", RestaurantTypeStd: "pizza restaurant"},
		{DishBase: "burger", RestaurantTypeStd: "Spaceship Diner"},
	}}
	rows := []RawRow{exampleRow(), exampleRow()}

	_, err := NewRunner(stub).Run(context.Background(), rows, Options{})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if !reflect.DeepEqual(valErr.Values, []string{"spaceship diner"}) {
		t.Fatalf("expected offending value list, got %q", valErr.Values)
	}
}

func TestRun_OffendingValuesSorted(t *testing.T) {
	stub := &stubClassifier{results: []llm.RowResult{
		{RestaurantTypeStd: "zeppelin bar"},
		{RestaurantTypeStd: "airship cafe"},
	}}
	rows := []RawRow{exampleRow(), exampleRow()}

	_, err := NewRunner(stub).Run(context.Background(), rows, Options{})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if !reflect.DeepEqual(valErr.Values, []string{"airship cafe", "zeppelin bar"}) {
		t.Fatalf("expected sorted offending values, got %q", valErr.Values)
	}
}

func TestRun_CustomAllowedTypes(t *testing.T) {
	stub := &stubClassifier{results: []llm.RowResult{{RestaurantTypeStd: "space diner"}}}

	records, err := NewRunner(stub).Run(context.Background(), []RawRow{exampleRow()}, Options{
		AllowedTypes: []string{"space diner"},
	})
	if err != nil {
		t.Fatalf("Run with custom vocabulary: %v", err)
	}
	if records[0].RestaurantTypeStd != "space diner" {
		t.Fatalf("unexpected record: %+v", records[0])
	}

	// The custom vocabulary must drive the prompt too.
	if !strings.Contains(stub.gotSystem, `"space diner"`) {
		t.Fatalf("expected custom vocabulary in system prompt")
	}
}

func TestRun_ReplyLengthMismatchFails(t *testing.T) {
	stub := &stubClassifier{results: []llm.RowResult{{RestaurantTypeStd: "pizza restaurant"}}}
	rows := []RawRow{exampleRow(), exampleRow()}

	_, err := NewRunner(stub).Run(context.Background(), rows, Options{})
	var sizeErr *BatchSizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("expected *BatchSizeError, got %v", err)
	}
	if sizeErr.Want != 2 || sizeErr.Got != 1 {
		t.Fatalf("unexpected size error: %+v", sizeErr)
	}
}

func TestRun_ClassifierErrorPropagates(t *testing.T) {
	wantErr := errors.New("upstream timeout")
	stub := &stubClassifier{err: wantErr}

	_, err := NewRunner(stub).Run(context.Background(), []RawRow{exampleRow()}, Options{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected upstream error to propagate, got %v", err)
	}
}

func TestRun_NilFlavorBecomesEmptySlice(t *testing.T) {
	stub := &stubClassifier{results: []llm.RowResult{{DishBase: "pizza", RestaurantTypeStd: "pizza restaurant"}}}

	records, err := NewRunner(stub).Run(context.Background(), []RawRow{exampleRow()}, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if records[0].DishFlavor == nil || len(records[0].DishFlavor) != 0 {
		t.Fatalf("expected empty non-nil flavor slice, got %#v", records[0].DishFlavor)
	}
}
