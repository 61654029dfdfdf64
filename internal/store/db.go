package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/baxromumarov/recipe-hunter/internal/recipe"
)

//go:embed schema.sql
var schemaSQL string

// Mirror copies the persisted collection into a SQL table so other tools can
// query it. The JSON file stays the source of truth.
type Mirror struct {
	db *sqlx.DB
}

type recipeRow struct {
	ID               string         `db:"id"`
	Title            string         `db:"title"`
	URL              string         `db:"url"`
	Image            sql.NullString `db:"image"`
	Tags             string         `db:"tags"`
	TotalTimeMinutes sql.NullInt64  `db:"total_time_minutes"`
	Calories         sql.NullString `db:"calories"`
	Ingredients      string         `db:"ingredients"`
	Position         int            `db:"position"`
}

// NewMirror opens driver ("postgres" or "sqlite") at dsn.
func NewMirror(driver, dsn string) (*Mirror, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &Mirror{db: db}, nil
}

func (m *Mirror) Close() error {
	return m.db.Close()
}

func (m *Mirror) RunMigrations(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := m.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// ReplaceAll rewrites the table with records inside one transaction.
func (m *Mirror) ReplaceAll(ctx context.Context, records []recipe.Record) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM recipes"); err != nil {
		return fmt.Errorf("clear recipes: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
INSERT INTO recipes (id, title, url, image, tags, total_time_minutes, calories, ingredients, position, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, r := range records {
		row, err := toRow(r, i)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			row.ID,
			row.Title,
			row.URL,
			row.Image,
			row.Tags,
			row.TotalTimeMinutes,
			row.Calories,
			row.Ingredients,
			row.Position,
			now,
		); err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// List returns the mirrored records in persisted order.
func (m *Mirror) List(ctx context.Context) ([]recipe.Record, error) {
	var rows []recipeRow
	if err := m.db.SelectContext(ctx, &rows, `
SELECT id, title, url, image, tags, total_time_minutes, calories, ingredients, position
FROM recipes
ORDER BY position
`); err != nil {
		return nil, err
	}

	out := make([]recipe.Record, 0, len(rows))
	for _, row := range rows {
		r, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func toRow(r recipe.Record, position int) (recipeRow, error) {
	tags, err := json.Marshal(nonNil(r.Tags))
	if err != nil {
		return recipeRow{}, err
	}
	ingredients, err := json.Marshal(nonNil(r.Ingredients))
	if err != nil {
		return recipeRow{}, err
	}
	row := recipeRow{
		ID:          r.ID,
		Title:       r.Title,
		URL:         r.URL,
		Tags:        string(tags),
		Ingredients: string(ingredients),
		Calories:    sql.NullString{String: r.Calories, Valid: r.Calories != ""},
		Position:    position,
	}
	if r.Image != nil {
		row.Image = sql.NullString{String: *r.Image, Valid: true}
	}
	if r.TotalTimeMinutes != nil {
		row.TotalTimeMinutes = sql.NullInt64{Int64: int64(*r.TotalTimeMinutes), Valid: true}
	}
	return row, nil
}

func fromRow(row recipeRow) (recipe.Record, error) {
	r := recipe.Record{
		ID:       row.ID,
		Title:    row.Title,
		URL:      row.URL,
		Calories: row.Calories.String,
	}
	if err := json.Unmarshal([]byte(row.Tags), &r.Tags); err != nil {
		return recipe.Record{}, fmt.Errorf("decode tags for %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Ingredients), &r.Ingredients); err != nil {
		return recipe.Record{}, fmt.Errorf("decode ingredients for %s: %w", row.ID, err)
	}
	if row.Image.Valid {
		image := row.Image.String
		r.Image = &image
	}
	if row.TotalTimeMinutes.Valid {
		minutes := int(row.TotalTimeMinutes.Int64)
		r.TotalTimeMinutes = &minutes
	}
	return r, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
