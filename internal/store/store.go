package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sqlc-dev/pqtype"

	"menuetl/internal/extract"
)

// Store wraps access to the database through a shared *sql.DB.
type Store struct {
	DB *sql.DB
}

// New creates a new Store that uses a shared *sql.DB with pooling.
func New(database *sql.DB) *Store {
	return &Store{DB: database}
}

// ErrInvalidSource rejects a source selector other than the two known
// upstream datasets.
var ErrInvalidSource = errors.New(`invalid source: must be "training" or "testing"`)

// sinkTableForSource maps the source selector to the cleaned output table.
func sinkTableForSource(source string) (string, error) {
	switch source {
	case "training":
		return "cleaned_menu", nil
	case "testing":
		return "cleaned_internal_menu", nil
	default:
		return "", fmt.Errorf("%w (got %q)", ErrInvalidSource, source)
	}
}

// FetchMenuBatch reads one row-range of raw menu rows for the given source.
// Training rows join the restaurant table for the free-text restaurant type;
// testing rows come from the internal dataset. The returned rows include the
// restaurant_id column, which downstream projection discards.
func (s *Store) FetchMenuBatch(ctx context.Context, start, end int, source string) ([]extract.RawRow, error) {
	var query string
	switch source {
	case "training":
		query = `
			SELECT m.id::text AS item_id, m.row_id::text AS row_id,
			       m.menu_name AS item_name,
			       COALESCE(m.menu_category, '') AS menu_category,
			       COALESCE(m.menu_item_description, '') AS menu_item_description,
			       m.restaurant_name, m.restaurant_id::text AS restaurant_id,
			       r.restaurant_type
			FROM menu_items m
			JOIN restaurants r ON m.restaurant_id = r.id
			WHERE m.row_id BETWEEN $1 AND $2
			ORDER BY m.row_id`
	case "testing":
		query = `
			SELECT id::text AS item_id, row_id::text AS row_id,
			       menu_name AS item_name,
			       COALESCE(menu_category, '') AS menu_category,
			       COALESCE(menu_item_description, '') AS menu_item_description,
			       restaurant_name, restaurant_id::text AS restaurant_id,
			       COALESCE(restaurant_type, '') AS restaurant_type
			FROM internal_menu_items
			WHERE row_id BETWEEN $1 AND $2
			ORDER BY row_id`
	default:
		return nil, fmt.Errorf("%w (got %q)", ErrInvalidSource, source)
	}

	sqlRows, err := s.DB.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query data batch: %w", err)
	}
	defer sqlRows.Close()

	var batch []extract.RawRow
	for sqlRows.Next() {
		var itemID, rowID, itemName, menuCategory, menuItemDescription, restaurantName, restaurantID, restaurantType string
		if err := sqlRows.Scan(&itemID, &rowID, &itemName, &menuCategory, &menuItemDescription, &restaurantName, &restaurantID, &restaurantType); err != nil {
			return nil, fmt.Errorf("failed to scan menu row: %w", err)
		}
		batch = append(batch, extract.RawRow{
			"item_id":               itemID,
			"row_id":                rowID,
			"item_name":             itemName,
			"menu_category":         menuCategory,
			"menu_item_description": menuItemDescription,
			"restaurant_name":       restaurantName,
			"restaurant_id":         restaurantID,
			"restaurant_type":       restaurantType,
		})
	}
	if err := sqlRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read data batch: %w", err)
	}

	return batch, nil
}

// UploadCleaned persists one batch of extraction records into the cleaned
// table for the source, keyed by item_id. With truncate set, the table is
// cleared first so re-running a range cannot conflict on the primary key.
// The whole upload is one transaction; it reports the number of rows written.
func (s *Store) UploadCleaned(ctx context.Context, records []extract.Record, source string, truncate bool) (int, error) {
	table, err := sinkTableForSource(source)
	if err != nil {
		return 0, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("upload failed: %w", err)
	}
	defer tx.Rollback()

	if truncate {
		if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE "+table); err != nil {
			return 0, fmt.Errorf("upload failed: truncate %s: %w", table, err)
		}
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (item_id, row_id, dish_base, dish_flavor, is_combo, restaurant_type_std)
		VALUES ($1, $2, $3, $4, $5, $6)`, table)

	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, insert,
			rec.ItemID, rec.RowID, rec.DishBase,
			joinFlavors(rec.DishFlavor), rec.IsCombo, rec.RestaurantTypeStd,
		); err != nil {
			return 0, fmt.Errorf("upload failed: insert item %s: %w", rec.ItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("upload failed: %w", err)
	}

	return len(records), nil
}

// joinFlavors flattens the flavor tag list into the comma-separated string
// the cleaned tables store.
func joinFlavors(flavors []string) string {
	return strings.Join(flavors, ", ")
}

// RunLogEntry is one audit record for an ETL invocation.
type RunLogEntry struct {
	StartRow int
	EndRow   int
	Source   string
	Status   string
	Message  string
	Metadata json.RawMessage
}

// InsertRunLog appends an audit record with a server-side timestamp. Callers
// treat failures as best-effort and must not abort the pipeline on error.
func (s *Store) InsertRunLog(ctx context.Context, e RunLogEntry) error {
	message := sql.NullString{}
	if e.Message != "" {
		message = sql.NullString{String: e.Message, Valid: true}
	}

	metadata := pqtype.NullRawMessage{}
	if len(e.Metadata) > 0 {
		metadata = pqtype.NullRawMessage{RawMessage: e.Metadata, Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO etl_run_log (id, start_row, end_row, source, status, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), e.StartRow, e.EndRow, e.Source, e.Status, message, metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to write run log: %w", err)
	}
	return nil
}
