package extract

import (
	"context"
	"fmt"
	"sort"

	"menuetl/internal/llm"
	"menuetl/internal/prompt"
	"menuetl/internal/vocab"
)

// expectedColumns is the exact input schema sent to the model, in order.
// Extra columns from the row source are discarded; missing ones are filled
// with empty strings.
var expectedColumns = []string{
	"row_id", "item_id", "restaurant_name", "restaurant_type",
	"item_name", "menu_item_description", "menu_category",
}

// RawRow is one tabular input row as produced by a row source, keyed by
// column name. Callers with a different schema supply a column mapping.
type RawRow map[string]string

// MenuRow is the typed, projected input row. Its JSON shape is the exact
// payload contract with the model.
type MenuRow struct {
	RowID               string `json:"row_id"`
	ItemID              string `json:"item_id"`
	RestaurantName      string `json:"restaurant_name"`
	RestaurantType      string `json:"restaurant_type"`
	ItemName            string `json:"item_name"`
	MenuItemDescription string `json:"menu_item_description"`
	MenuCategory        string `json:"menu_category"`
}

// Record is one validated extraction result. RowID and ItemID are carried
// through unchanged from the input row at the same position.
type Record struct {
	RowID             string   `json:"row_id"`
	ItemID            string   `json:"item_id"`
	DishBase          string   `json:"dish_base"`
	DishFlavor        []string `json:"dish_flavor"`
	IsCombo           bool     `json:"is_combo"`
	RestaurantTypeStd string   `json:"restaurant_type_std"`
}

// Options are the optional knobs of Run. Zero value means: no column
// renaming, default vocabulary.
type Options struct {
	ColumnMapping map[string]string
	AllowedTypes  []string
}

// ValidationError rejects a whole batch whose restaurant_type_std values are
// not a subset of the allowed vocabulary. Values are normalized and sorted
// so messages are reproducible.
type ValidationError struct {
	Values []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid restaurant_type_std values found: %q", e.Values)
}

// BatchSizeError reports a model reply whose array length does not match the
// input batch. Truncating or padding here would silently drop or misalign
// rows, so the run fails instead.
type BatchSizeError struct {
	Want int
	Got  int
}

func (e *BatchSizeError) Error() string {
	return fmt.Sprintf("reply length mismatch: sent %d rows, got %d results", e.Want, e.Got)
}

// Runner is the batch extraction orchestrator. It holds no state across
// calls beyond the injected classifier.
type Runner struct {
	client llm.Classifier
}

func NewRunner(client llm.Classifier) *Runner {
	return &Runner{client: client}
}

// Run maps a tabular batch through one classification call into validated
// records. Output length and order always equal input length and order; any
// failure aborts the whole batch.
func (r *Runner) Run(ctx context.Context, rows []RawRow, opts Options) ([]Record, error) {
	batch := NormalizeRows(rows, opts.ColumnMapping)

	allowed := opts.AllowedTypes
	if allowed == nil {
		allowed = vocab.DefaultAllowedTypes()
	}

	system := prompt.System(allowed)
	results, err := r.client.ClassifyBatch(ctx, system, batch)
	if err != nil {
		return nil, err
	}

	if len(results) != len(batch) {
		return nil, &BatchSizeError{Want: len(batch), Got: len(results)}
	}

	records := make([]Record, len(batch))
	for i, res := range results {
		flavor := res.DishFlavor
		if flavor == nil {
			flavor = []string{}
		}
		records[i] = Record{
			RowID:             batch[i].RowID,
			ItemID:            batch[i].ItemID,
			DishBase:          res.DishBase,
			DishFlavor:        flavor,
			IsCombo:           res.IsCombo,
			RestaurantTypeStd: res.RestaurantTypeStd,
		}
	}

	if err := validateTypes(records, allowed); err != nil {
		return nil, err
	}

	return records, nil
}

// NormalizeRows renames columns per the mapping, fills missing expected
// columns with empty strings, and projects to exactly the expected column
// set. Absence of optional context is never an error.
func NormalizeRows(rows []RawRow, mapping map[string]string) []MenuRow {
	out := make([]MenuRow, len(rows))
	for i, raw := range rows {
		row := make(map[string]string, len(raw))
		for k, v := range raw {
			if renamed, ok := mapping[k]; ok {
				k = renamed
			}
			row[k] = v
		}

		out[i] = MenuRow{
			RowID:               row["row_id"],
			ItemID:              row["item_id"],
			RestaurantName:      row["restaurant_name"],
			RestaurantType:      row["restaurant_type"],
			ItemName:            row["item_name"],
			MenuItemDescription: row["menu_item_description"],
			MenuCategory:        row["menu_category"],
		}
	}
	return out
}

// validateTypes checks the distinct set of output restaurant_type_std values
// against the allowed vocabulary, case- and whitespace-insensitively. The
// check is batch-level: one offending value rejects every record.
func validateTypes(records []Record, allowed []string) error {
	allowedSet := vocab.NormalizeSet(allowed)

	found := make(map[string]struct{}, len(records))
	for _, rec := range records {
		found[vocab.Normalize(rec.RestaurantTypeStd)] = struct{}{}
	}

	var invalid []string
	for v := range found {
		if _, ok := allowedSet[v]; !ok {
			invalid = append(invalid, v)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return &ValidationError{Values: invalid}
	}
	return nil
}
