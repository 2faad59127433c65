package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"intelplatform/models"
)

const incidentColumns = `incident_id, COALESCE(timestamp, ''), COALESCE(severity, ''), COALESCE(category, ''),
	COALESCE(status, ''), COALESCE(description, '')`

// Incidents is the cyber_incidents repository.
type Incidents struct {
	db DBTX
}

func NewIncidents(db DBTX) *Incidents {
	return &Incidents{db: db}
}

func scanIncident(row interface{ Scan(...any) error }) (models.Incident, error) {
	var i models.Incident
	err := row.Scan(&i.ID, &i.Timestamp, &i.Severity, &i.Category, &i.Status, &i.Description)
	return i, err
}

// Insert stores inc and returns its id. A zero ID lets SQLite assign one.
func (r *Incidents) Insert(ctx context.Context, inc models.Incident) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO cyber_incidents
		(incident_id, timestamp, severity, category, status, description)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nullable(inc.ID), inc.Timestamp, inc.Severity, inc.Category, inc.Status, inc.Description)
	if err != nil {
		return 0, fmt.Errorf("insert incident: %w", err)
	}
	return res.LastInsertId()
}

func (r *Incidents) List(ctx context.Context) ([]models.Incident, error) {
	return r.Head(ctx, -1)
}

// Head returns the first limit rows in List order. A negative limit
// returns every row.
func (r *Incidents) Head(ctx context.Context, limit int) ([]models.Incident, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+incidentColumns+` FROM cyber_incidents ORDER BY incident_id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var result []models.Incident
	for rows.Next() {
		i, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		result = append(result, i)
	}
	return result, rows.Err()
}

func (r *Incidents) Get(ctx context.Context, id int64) (models.Incident, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM cyber_incidents WHERE incident_id = ?`, id)
	i, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Incident{}, ErrNotFound
	}
	if err != nil {
		return models.Incident{}, fmt.Errorf("get incident %d: %w", id, err)
	}
	return i, nil
}

func (r *Incidents) UpdateStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE cyber_incidents SET status = ? WHERE incident_id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update incident status: %w", err)
	}
	return expectOne(res, "update incident status")
}

func (r *Incidents) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cyber_incidents WHERE incident_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}
	return expectOne(res, "delete incident")
}

func (r *Incidents) CountByCategory(ctx context.Context) ([]models.CountRow, error) {
	return countBy(ctx, r.db, `SELECT COALESCE(category, ''), COUNT(*) AS count
		FROM cyber_incidents GROUP BY category ORDER BY count DESC`)
}

func (r *Incidents) CountBySeverity(ctx context.Context) ([]models.CountRow, error) {
	return countBy(ctx, r.db, `SELECT COALESCE(severity, ''), COUNT(*) AS count
		FROM cyber_incidents GROUP BY severity ORDER BY count DESC`)
}

// HighSeverityByStatus counts High severity incidents per status.
func (r *Incidents) HighSeverityByStatus(ctx context.Context) ([]models.CountRow, error) {
	return countBy(ctx, r.db, `SELECT COALESCE(status, ''), COUNT(*) AS count
		FROM cyber_incidents WHERE severity = 'High' GROUP BY status ORDER BY count DESC`)
}
