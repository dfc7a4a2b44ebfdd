package dataset

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hollowdata/gridstate/internal/datasql"
	"github.com/hollowdata/gridstate/internal/query"
	"github.com/hollowdata/gridstate/internal/schema"
)

// Person is one row of the people table.
type Person struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	City      string    `json:"city"`
	Role      string    `json:"role"`
	Age       int       `json:"age"`
	CreatedAt time.Time `json:"created_at"`
}

// Insert adds one person. ON CONFLICT(id) DO NOTHING makes duplicate IDs
// idempotent; other constraint violations still error.
func (s *Store) Insert(ctx context.Context, p Person) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO people (id, name, email, city, role, age, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		p.ID,
		p.Name,
		p.Email,
		p.City,
		p.Role,
		p.Age,
		p.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

// InsertBatch adds people in one transaction.
func (s *Store) InsertBatch(ctx context.Context, people []Person) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO people (id, name, email, city, role, age, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	defer stmt.Close()

	for _, p := range people {
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.Name, p.Email, p.City, p.Role, p.Age,
			p.CreatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// Seed inserts n sample people and returns how many were written.
func (s *Store) Seed(ctx context.Context, n int, gen IDGenerator) (int, error) {
	people := SamplePeople(n, gen)
	if err := s.InsertBatch(ctx, people); err != nil {
		return 0, fmt.Errorf("seed: %w", err)
	}
	return len(people), nil
}

// Search runs a grid query snapshot against the people table: the
// requested page of rows plus the total count of rows matching the
// filter, which the grid needs for its pagination.
func (s *Store) Search(ctx context.Context, columns *schema.Set, st query.State) ([]Person, int64, error) {
	compiler, err := datasql.NewCompiler("people", columns)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}

	countSQL, countParams, err := compiler.CompileCount(st)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, countSQL, countParams...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("search: count: %w", err)
	}

	pageSQL, pageParams, err := compiler.Compile(st)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, pageSQL, pageParams...)
	if err != nil {
		return nil, 0, fmt.Errorf("search: query: %w", err)
	}
	defer rows.Close()

	// SELECT * scan order follows the column order in schema.sql.
	var people []Person
	for rows.Next() {
		var p Person
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.City, &p.Role, &p.Age, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("search: scan: %w", err)
		}
		p.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, 0, fmt.Errorf("search: parse created_at: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("search: iterate: %w", err)
	}

	if people == nil {
		people = []Person{}
	}
	return people, total, nil
}

// CountAll returns the total number of people.
func (s *Store) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM people").Scan(&count); err != nil {
		return 0, fmt.Errorf("count people: %w", err)
	}
	return count, nil
}

// Sample data pools. Rotation is index-based so the same n and generator
// always produce the same rows.
var (
	sampleNames = []string{
		"Ada Lovelace", "Grace Hopper", "Alan Turing", "Edsger Dijkstra",
		"Barbara Liskov", "Donald Knuth", "Frances Allen", "Tony Hoare",
		"Margaret Hamilton", "John Backus", "Radia Perlman", "Ken Thompson",
	}
	sampleCities = []string{
		"London", "New York", "Amsterdam", "Pittsburgh", "Oslo", "Tokyo",
	}
	sampleRoles = []string{"admin", "editor", "viewer"}
)

// seedEpoch anchors the deterministic created_at sequence.
var seedEpoch = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

// SamplePeople builds n deterministic sample rows. IDs come from the
// generator; everything else rotates through fixed pools.
func SamplePeople(n int, gen IDGenerator) []Person {
	people := make([]Person, n)
	for i := 0; i < n; i++ {
		name := sampleNames[i%len(sampleNames)]
		people[i] = Person{
			ID:        gen.NewID(),
			Name:      name,
			Email:     sampleEmail(name, i),
			City:      sampleCities[i%len(sampleCities)],
			Role:      sampleRoles[i%len(sampleRoles)],
			Age:       22 + (i*7)%41,
			CreatedAt: seedEpoch.Add(time.Duration(i) * time.Minute),
		}
	}
	return people
}

// sampleEmail derives a unique address from a name and row index.
func sampleEmail(name string, i int) string {
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "."))
	return fmt.Sprintf("%s.%d@example.com", slug, i)
}
