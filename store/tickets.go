package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"intelplatform/models"
)

const ticketColumns = `ticket_id, COALESCE(priority, ''), COALESCE(description, ''), COALESCE(status, ''),
	COALESCE(assigned_to, ''), COALESCE(created_at, ''), COALESCE(resolution_time_hours, 0)`

// Tickets is the it_tickets repository.
type Tickets struct {
	db DBTX
}

func NewTickets(db DBTX) *Tickets {
	return &Tickets{db: db}
}

func scanTicket(row interface{ Scan(...any) error }) (models.Ticket, error) {
	var t models.Ticket
	err := row.Scan(&t.ID, &t.Priority, &t.Description, &t.Status, &t.AssignedTo, &t.CreatedAt, &t.ResolutionTimeHours)
	return t, err
}

func (r *Tickets) Insert(ctx context.Context, t models.Ticket) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO it_tickets
		(ticket_id, priority, description, status, assigned_to, created_at, resolution_time_hours)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullable(t.ID), t.Priority, t.Description, t.Status, t.AssignedTo, t.CreatedAt, t.ResolutionTimeHours)
	if err != nil {
		return 0, fmt.Errorf("insert ticket: %w", err)
	}
	return res.LastInsertId()
}

// List returns the newest tickets first.
func (r *Tickets) List(ctx context.Context) ([]models.Ticket, error) {
	return r.Head(ctx, -1)
}

// Head returns the first limit rows in List order. A negative limit
// returns every row.
func (r *Tickets) Head(ctx context.Context, limit int) ([]models.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ticketColumns+` FROM it_tickets ORDER BY created_at DESC, ticket_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var result []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *Tickets) Get(ctx context.Context, id int64) (models.Ticket, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM it_tickets WHERE ticket_id = ?`, id)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ticket{}, ErrNotFound
	}
	if err != nil {
		return models.Ticket{}, fmt.Errorf("get ticket %d: %w", id, err)
	}
	return t, nil
}

func (r *Tickets) UpdateStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE it_tickets SET status = ? WHERE ticket_id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}
	return expectOne(res, "update ticket status")
}

func (r *Tickets) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM it_tickets WHERE ticket_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	return expectOne(res, "delete ticket")
}

func (r *Tickets) CountByStatus(ctx context.Context) ([]models.CountRow, error) {
	return countBy(ctx, r.db, `SELECT COALESCE(status, ''), COUNT(*) AS count
		FROM it_tickets GROUP BY status ORDER BY count DESC`)
}

func (r *Tickets) CountByPriority(ctx context.Context) ([]models.CountRow, error) {
	return countBy(ctx, r.db, `SELECT COALESCE(priority, ''), COUNT(*) AS count
		FROM it_tickets GROUP BY priority ORDER BY count DESC`)
}
