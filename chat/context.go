package chat

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"intelplatform/models"
	"intelplatform/store"
)

// ContextSource flattens the department table behind a role into CSV text.
type ContextSource struct {
	incidents *store.Incidents
	tickets   *store.Tickets
	datasets  *store.Datasets
	maxRows   int
}

func NewContextSource(incidents *store.Incidents, tickets *store.Tickets, datasets *store.Datasets, maxRows int) *ContextSource {
	if maxRows <= 0 {
		maxRows = 50
	}
	return &ContextSource{incidents: incidents, tickets: tickets, datasets: datasets, maxRows: maxRows}
}

type section struct {
	title string
	empty string
	load  func(context.Context) ([][]string, error)
}

func (c *ContextSource) sections(role string) []section {
	incidents := section{"INCIDENTS TABLE", "No incidents found in database.", c.incidentRows}
	tickets := section{"IT TICKETS TABLE", "No tickets found.", c.ticketRows}
	datasets := section{"AVAILABLE DATASETS", "No datasets uploaded yet.", c.datasetRows}

	switch role {
	case models.RoleCyber:
		return []section{incidents}
	case models.RoleIT:
		return []section{tickets}
	case models.RoleData:
		return []section{datasets}
	case models.RoleAdmin:
		return []section{incidents, tickets, datasets}
	}
	return nil
}

// Build returns the context block for role. Roles without a department get
// an empty string. A failed query becomes an error banner instead of an
// error so the assistant can still answer.
func (c *ContextSource) Build(ctx context.Context, role string) string {
	var b strings.Builder
	for _, s := range c.sections(role) {
		rows, err := s.load(ctx)
		switch {
		case err != nil:
			fmt.Fprintf(&b, "\n\n[SYSTEM ERROR FETCHING DATA]: %v\n", err)
		case len(rows) <= 1:
			fmt.Fprintf(&b, "\n\n[LIVE DATABASE CONTEXT]\n%s\n", s.empty)
		default:
			fmt.Fprintf(&b, "\n\n[LIVE DATABASE CONTEXT - %s]\n%s\n", s.title, toCSV(rows))
		}
	}
	return b.String()
}

func toCSV(rows [][]string) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.WriteAll(rows)
	return b.String()
}

// The loaders return a header row followed by at most maxRows records.

func (c *ContextSource) incidentRows(ctx context.Context) ([][]string, error) {
	list, err := c.incidents.Head(ctx, c.maxRows)
	if err != nil {
		return nil, err
	}
	rows := [][]string{{"incident_id", "timestamp", "severity", "category", "status", "description"}}
	for _, i := range list {
		rows = append(rows, []string{strconv.FormatInt(i.ID, 10), i.Timestamp, i.Severity, i.Category, i.Status, i.Description})
	}
	return rows, nil
}

func (c *ContextSource) ticketRows(ctx context.Context) ([][]string, error) {
	list, err := c.tickets.Head(ctx, c.maxRows)
	if err != nil {
		return nil, err
	}
	rows := [][]string{{"ticket_id", "priority", "description", "status", "assigned_to", "created_at", "resolution_time_hours"}}
	for _, t := range list {
		rows = append(rows, []string{strconv.FormatInt(t.ID, 10), t.Priority, t.Description, t.Status,
			t.AssignedTo, t.CreatedAt, strconv.Itoa(t.ResolutionTimeHours)})
	}
	return rows, nil
}

func (c *ContextSource) datasetRows(ctx context.Context) ([][]string, error) {
	list, err := c.datasets.Head(ctx, c.maxRows)
	if err != nil {
		return nil, err
	}
	rows := [][]string{{"dataset_id", "name", "rows", "columns", "uploaded_by", "upload_date"}}
	for _, d := range list {
		rows = append(rows, []string{strconv.FormatInt(d.ID, 10), d.Name, strconv.Itoa(d.Rows),
			strconv.Itoa(d.Columns), d.UploadedBy, d.UploadDate})
	}
	return rows, nil
}
