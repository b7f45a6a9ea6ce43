// Package store persists submitted rosters and their resulting
// assignments for later retrieval by ID. This is a service-layer
// concern, not an engine one: internal/orchestrate holds no persisted
// state and never reads anything store writes. Built on database/sql +
// lib/pq, with rosters/roster_students/assignments tables.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/nlevy/classrooms-go/internal/orchestrate"
	"github.com/nlevy/classrooms-go/internal/roster"
)

//go:embed schema.sql
var schema string

// Store wraps a Postgres connection pool: a bare *sql.DB, no ORM, no
// query builder.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres, verifies connectivity, and applies the
// embedded schema, mirroring main.go's sql.Open/db.Ping/db.Exec(schema)
// sequence.
func Open(pgConn string) (*Store, error) {
	db, err := sql.Open("postgres", pgConn)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connecting to database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the database connection is healthy, used by
// the server's /healthz handler.
func (s *Store) Ping() error { return s.db.Ping() }

// SaveRoster persists a named roster and its raw student rows,
// returning the new roster ID. Friend lists are stored as a native
// Postgres array via pq.Array, the same helper LoadRoster uses to scan
// them back.
func (s *Store) SaveRoster(ctx context.Context, name string, raw []roster.RawStudent) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rosterID int64
	err = tx.QueryRowContext(ctx, "INSERT INTO rosters (name) VALUES ($1) RETURNING id", name).Scan(&rosterID)
	if err != nil {
		return 0, fmt.Errorf("store: inserting roster: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO roster_students
			(roster_id, name, school, gender, academic, behavior, friends, not_with, cluster_id, comments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
	if err != nil {
		return 0, fmt.Errorf("store: preparing student insert: %w", err)
	}
	defer stmt.Close()

	for _, rs := range raw {
		var notWith sql.NullString
		if rs.NotWith != nil {
			notWith = sql.NullString{String: *rs.NotWith, Valid: true}
		}
		var clusterID sql.NullInt64
		if rs.ClusterID != nil {
			clusterID = sql.NullInt64{Int64: int64(*rs.ClusterID), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, rosterID, rs.Name, rs.School, string(rs.Gender), string(rs.Academic), string(rs.Behavior),
			pq.Array(rs.Friends), notWith, clusterID, rs.Comments); err != nil {
			return 0, fmt.Errorf("store: inserting student %q: %w", rs.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: committing roster: %w", err)
	}
	return rosterID, nil
}

// LoadRoster reads back the raw student rows for a roster ID, the
// inverse of SaveRoster.
func (s *Store) LoadRoster(ctx context.Context, rosterID int64) ([]roster.RawStudent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, school, gender, academic, behavior, friends, not_with, cluster_id, comments
		FROM roster_students WHERE roster_id = $1 ORDER BY id`, rosterID)
	if err != nil {
		return nil, fmt.Errorf("store: querying roster students: %w", err)
	}
	defer rows.Close()

	var out []roster.RawStudent
	for rows.Next() {
		var rs roster.RawStudent
		var gender, academic, behavior string
		var friends []string
		var notWith sql.NullString
		var clusterID sql.NullInt64
		if err := rows.Scan(&rs.Name, &rs.School, &gender, &academic, &behavior, pq.Array(&friends), &notWith, &clusterID, &rs.Comments); err != nil {
			return nil, fmt.Errorf("store: scanning roster student: %w", err)
		}
		rs.Gender = roster.Gender(gender)
		rs.Academic = roster.Level(academic)
		rs.Behavior = roster.Level(behavior)
		rs.Friends = friends
		if notWith.Valid {
			rs.NotWith = &notWith.String
		}
		if clusterID.Valid {
			id := int(clusterID.Int64)
			rs.ClusterID = &id
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// resultPayload is the JSON shape persisted in assignments.result,
// mirroring the envelope internal/httpapi returns over the wire.
type resultPayload struct {
	Strategy    string              `json:"strategy"`
	FellBack    bool                `json:"fellBack"`
	Assignment  map[string]int      `json:"assignment"`  // student name -> class
	Evaluation  evaluationPayload   `json:"evaluation"`
}

type evaluationPayload struct {
	Feasible     bool    `json:"feasible"`
	OverallScore float64 `json:"overallScore"`
}

// SaveAssignment persists the outcome of one orchestrate.Assign call
// against a previously saved roster, returning the new assignment ID.
func (s *Store) SaveAssignment(ctx context.Context, rosterID int64, classesNumber int, result orchestrate.Result) (int64, error) {
	assignmentByName := make(map[string]int, result.Roster.Len())
	for i, name := range result.Roster.Names() {
		assignmentByName[name] = result.Assignment[i]
	}

	payload := resultPayload{
		Strategy:   result.Strategy,
		FellBack:   result.FellBack,
		Assignment: assignmentByName,
		Evaluation: evaluationPayload{
			Feasible:     result.Evaluation.Feasible,
			OverallScore: result.Evaluation.OverallScore,
		},
	}
	blob, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("store: marshaling result: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO assignments (roster_id, algorithm, classes_number, fell_back, feasible, overall_score, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		rosterID, result.Strategy, classesNumber, result.FellBack, result.Evaluation.Feasible, result.Evaluation.OverallScore, blob).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: inserting assignment: %w", err)
	}
	return id, nil
}

// AssignmentSummary is one row of a roster's assignment history.
type AssignmentSummary struct {
	ID            int64
	Algorithm     string
	ClassesNumber int
	FellBack      bool
	Feasible      bool
	OverallScore  float64
}

// ListAssignments returns the assignment history for a roster, most
// recent first.
func (s *Store) ListAssignments(ctx context.Context, rosterID int64) ([]AssignmentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, algorithm, classes_number, fell_back, feasible, overall_score
		FROM assignments WHERE roster_id = $1 ORDER BY created_at DESC`, rosterID)
	if err != nil {
		return nil, fmt.Errorf("store: querying assignments: %w", err)
	}
	defer rows.Close()

	var out []AssignmentSummary
	for rows.Next() {
		var a AssignmentSummary
		if err := rows.Scan(&a.ID, &a.Algorithm, &a.ClassesNumber, &a.FellBack, &a.Feasible, &a.OverallScore); err != nil {
			return nil, fmt.Errorf("store: scanning assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
