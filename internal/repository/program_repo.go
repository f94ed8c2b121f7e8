package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/orienta-app/orienta/internal/models"
)

// Columns the catalog listing may sort by. Anything else falls back to id.
var sortableColumns = map[string]bool{
	"id":          true,
	"institution": true,
	"field":       true,
	"track":       true,
	"city":        true,
	"department":  true,
	"seats":       true,
}

// ProgramRepository handles catalog database operations
type ProgramRepository struct {
	db *sql.DB
}

// NewProgramRepository creates a new program repository
func NewProgramRepository(db *sql.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// List returns one page of programs matching the filter plus the total
// match count.
func (r *ProgramRepository) List(ctx context.Context, filter models.ProgramFilter) (*models.ProgramPage, error) {
	where, args := buildWhere(filter)

	var total int64
	err := r.db.QueryRowContext(ctx, "SELECT count(*) FROM programs"+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count programs: %w", err)
	}

	// Notes are token-gated and only served through GetByID.
	query := `SELECT id, institution, field, track, city, department, seats, created_at
		 FROM programs` + where + orderClause(filter) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	defer rows.Close()

	programs := make([]models.Program, 0, filter.PageSize)
	for rows.Next() {
		var p models.Program
		err := rows.Scan(&p.ID, &p.Institution, &p.Field, &p.Track, &p.City,
			&p.Department, &p.Seats, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan program: %w", err)
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}

	return &models.ProgramPage{
		Programs: programs,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// GetByID retrieves a program by ID. Returns (nil, nil) when absent.
func (r *ProgramRepository) GetByID(ctx context.Context, id int64) (*models.Program, error) {
	var p models.Program
	err := r.db.QueryRowContext(ctx,
		`SELECT id, institution, field, track, city, department, seats, notes, created_at
		 FROM programs WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Institution, &p.Field, &p.Track, &p.City,
		&p.Department, &p.Seats, &p.Notes, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get program: %w", err)
	}

	return &p, nil
}

// Create inserts a program record
func (r *ProgramRepository) Create(ctx context.Context, p *models.Program) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO programs (institution, field, track, city, department, seats, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		p.Institution, p.Field, p.Track, p.City, p.Department, p.Seats, p.Notes,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create program: %w", err)
	}
	return nil
}

func buildWhere(filter models.ProgramFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern)
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(institution ILIKE $%d OR field ILIKE $%d OR city ILIKE $%d)", n, n, n))
	}
	if len(filter.Tracks) > 0 {
		placeholders := make([]string, 0, len(filter.Tracks))
		for _, track := range filter.Tracks {
			args = append(args, track)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		clauses = append(clauses, "track IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		clauses = append(clauses, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.City != "" {
		args = append(args, filter.City)
		clauses = append(clauses, fmt.Sprintf("city = $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func orderClause(filter models.ProgramFilter) string {
	column := filter.SortBy
	if !sortableColumns[column] {
		column = "id"
	}
	dir := "ASC"
	if strings.EqualFold(filter.SortDir, "desc") {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", column, dir)
}
