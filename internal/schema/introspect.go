// Package schema introspects the target database and selects the tables
// relevant to a user request.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sqlpilot/sqlpilot/internal/models"
)

// Introspector reads table and column definitions from the sandbox
// database. The query shape depends on the driver; results are the same.
type Introspector struct {
	db     *sql.DB
	driver string
}

func NewIntrospector(db *sql.DB, driver string) *Introspector {
	return &Introspector{db: db, driver: driver}
}

// Tables returns every user table with its columns, in name order.
func (in *Introspector) Tables(ctx context.Context) ([]models.Table, error) {
	switch in.driver {
	case "sqlite3":
		return in.sqliteTables(ctx)
	case "pgx", "postgres":
		return in.postgresTables(ctx)
	default:
		return nil, fmt.Errorf("unsupported driver %q", in.driver)
	}
}

func (in *Introspector) sqliteTables(ctx context.Context) ([]models.Table, error) {
	rows, err := in.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tables := make([]models.Table, 0, len(names))
	for _, name := range names {
		cols, err := in.sqliteColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, models.Table{Name: name, Columns: cols})
	}
	return tables, nil
}

func (in *Introspector) sqliteColumns(ctx context.Context, table string) ([]models.Column, error) {
	rows, err := in.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []models.Column
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col := models.Column{
			Name:     name,
			Type:     typ,
			Nullable: notNull == 0,
			Default:  dflt.String,
		}
		if pk > 0 {
			col.Key = "PRI"
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (in *Introspector) postgresTables(ctx context.Context) ([]models.Table, error) {
	rows, err := in.db.QueryContext(ctx, `
		SELECT table_name, column_name, data_type, is_nullable, COALESCE(column_default, '')
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position`)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	var tables []models.Table
	byName := make(map[string]int)
	for rows.Next() {
		var table, column, typ, nullable, dflt string
		if err := rows.Scan(&table, &column, &typ, &nullable, &dflt); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		i, ok := byName[table]
		if !ok {
			i = len(tables)
			byName[table] = i
			tables = append(tables, models.Table{Name: table})
		}
		tables[i].Columns = append(tables[i].Columns, models.Column{
			Name:     column,
			Type:     typ,
			Nullable: strings.EqualFold(nullable, "YES"),
			Default:  dflt,
		})
	}
	return tables, rows.Err()
}

// FormatForPrompt renders the schema as the compact text block embedded
// in generation prompts.
func FormatForPrompt(tables []models.Table) string {
	if len(tables) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Table %s:\n", t.Name)
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  - %s %s", c.Name, c.Type)
			if c.Key == "PRI" {
				b.WriteString(" PRIMARY KEY")
			}
			if !c.Nullable {
				b.WriteString(" NOT NULL")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
