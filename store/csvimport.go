package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Schema is the fixed column layout a CSV file must match to be loaded into
// Table. Key is the primary key column; it may be absent from the file.
type Schema struct {
	Table   string
	Key     string
	Columns []string
}

var (
	IncidentSchema = Schema{
		Table:   "cyber_incidents",
		Key:     "incident_id",
		Columns: []string{"timestamp", "severity", "category", "status", "description"},
	}
	TicketSchema = Schema{
		Table:   "it_tickets",
		Key:     "ticket_id",
		Columns: []string{"priority", "description", "status", "assigned_to", "created_at", "resolution_time_hours"},
	}
	DatasetSchema = Schema{
		Table:   "datasets_metadata",
		Key:     "dataset_id",
		Columns: []string{"name", "rows", "columns", "uploaded_by", "upload_date"},
	}
)

// SchemaFor resolves a table name to its import schema.
func SchemaFor(table string) (Schema, bool) {
	for _, s := range []Schema{IncidentSchema, TicketSchema, DatasetSchema} {
		if strings.EqualFold(s.Table, table) {
			return s, true
		}
	}
	return Schema{}, false
}

// SchemaError lists the required columns a CSV header lacked.
type SchemaError struct {
	Table   string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("csv for %s is missing columns: %s", e.Table, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrSchemaMismatch }

type ImportOptions struct {
	// Replace empties the table before inserting.
	Replace bool
}

// ImportCSV loads r into schema.Table and returns the number of inserted rows.
// Header names match case-insensitively; unknown columns are dropped. The
// whole file is loaded in one transaction, so a bad row leaves the table as
// it was.
func ImportCSV(ctx context.Context, conn *sql.DB, schema Schema, r io.Reader, opts ImportOptions) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return 0, &SchemaError{Table: schema.Table, Missing: schema.Columns}
	}
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range schema.Columns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return 0, &SchemaError{Table: schema.Table, Missing: missing}
	}

	columns := schema.Columns
	if _, ok := index[schema.Key]; ok {
		columns = append([]string{schema.Key}, schema.Columns...)
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = `"` + c + `"`
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", schema.Table,
		strings.Join(quoted, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	if opts.Replace {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+schema.Table); err != nil {
			return 0, fmt.Errorf("clear %s: %w", schema.Table, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read csv line %d: %w", line, err)
		}

		args := make([]any, len(columns))
		for i, col := range columns {
			pos := index[col]
			if pos >= len(record) || strings.TrimSpace(record[pos]) == "" {
				args[i] = nil
				continue
			}
			args[i] = strings.TrimSpace(record[pos])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert csv line %d into %s: %w", line, schema.Table, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return inserted, nil
}
