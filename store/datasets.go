package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"intelplatform/models"
)

const datasetColumns = `dataset_id, COALESCE(name, ''), COALESCE("rows", 0), COALESCE("columns", 0),
	COALESCE(uploaded_by, ''), COALESCE(upload_date, '')`

// Datasets is the datasets_metadata repository.
type Datasets struct {
	db DBTX
}

func NewDatasets(db DBTX) *Datasets {
	return &Datasets{db: db}
}

func scanDataset(row interface{ Scan(...any) error }) (models.Dataset, error) {
	var d models.Dataset
	err := row.Scan(&d.ID, &d.Name, &d.Rows, &d.Columns, &d.UploadedBy, &d.UploadDate)
	return d, err
}

func (r *Datasets) Insert(ctx context.Context, d models.Dataset) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO datasets_metadata
		(dataset_id, name, "rows", "columns", uploaded_by, upload_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nullable(d.ID), d.Name, d.Rows, d.Columns, d.UploadedBy, d.UploadDate)
	if err != nil {
		return 0, fmt.Errorf("insert dataset: %w", err)
	}
	return res.LastInsertId()
}

func (r *Datasets) List(ctx context.Context) ([]models.Dataset, error) {
	return r.Head(ctx, -1)
}

// Head returns the first limit rows in List order. A negative limit
// returns every row.
func (r *Datasets) Head(ctx context.Context, limit int) ([]models.Dataset, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+datasetColumns+` FROM datasets_metadata ORDER BY dataset_id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var result []models.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *Datasets) Get(ctx context.Context, id int64) (models.Dataset, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets_metadata WHERE dataset_id = ?`, id)
	d, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Dataset{}, ErrNotFound
	}
	if err != nil {
		return models.Dataset{}, fmt.Errorf("get dataset %d: %w", id, err)
	}
	return d, nil
}

// Update rewrites the metadata of d.ID. Datasets carry no status column, so
// this is their counterpart of the status update on incidents and tickets.
func (r *Datasets) Update(ctx context.Context, d models.Dataset) error {
	res, err := r.db.ExecContext(ctx, `UPDATE datasets_metadata
		SET name = ?, "rows" = ?, "columns" = ?, uploaded_by = ?, upload_date = ?
		WHERE dataset_id = ?`,
		d.Name, d.Rows, d.Columns, d.UploadedBy, d.UploadDate, d.ID)
	if err != nil {
		return fmt.Errorf("update dataset: %w", err)
	}
	return expectOne(res, "update dataset")
}

func (r *Datasets) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM datasets_metadata WHERE dataset_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	return expectOne(res, "delete dataset")
}

// RegisterUpload records metadata for an arbitrary CSV file: its row count
// (header excluded) and column count.
func (r *Datasets) RegisterUpload(ctx context.Context, name string, src io.Reader, uploader, date string) (models.Dataset, error) {
	reader := csv.NewReader(src)
	header, err := reader.Read()
	if err != nil {
		return models.Dataset{}, fmt.Errorf("%w: empty or unreadable header", ErrSchemaMismatch)
	}

	rows := 0
	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.Dataset{}, fmt.Errorf("read csv row %d: %w", rows+2, err)
		}
		rows++
	}

	d := models.Dataset{Name: name, Rows: rows, Columns: len(header), UploadedBy: uploader, UploadDate: date}
	id, err := r.Insert(ctx, d)
	if err != nil {
		return models.Dataset{}, err
	}
	d.ID = id
	return d, nil
}
