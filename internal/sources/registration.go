// Package sources provides the registration export and commit history
// collaborators served over the command protocol.
package sources

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/raoulx24/snapkeeper/internal/logging"
)

type Skill struct {
	Check bool   `json:"check"`
	Level uint8  `json:"level"`
	Name  string `json:"name"`
}

// GradYear holds a graduation year that exports store either as a JSON
// number or as a JSON string. It re-encodes in the form it was read.
type GradYear struct {
	Year   uint16
	Text   string
	IsText bool
}

func (g GradYear) String() string {
	if g.IsText {
		return g.Text
	}
	return strconv.FormatUint(uint64(g.Year), 10)
}

func (g GradYear) MarshalJSON() ([]byte, error) {
	if g.IsText {
		return json.Marshal(g.Text)
	}
	return json.Marshal(g.Year)
}

func (g *GradYear) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*g = GradYear{Text: s, IsText: true}
		return nil
	}

	var n uint16
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("grad_year: want string or number up to 65535, got %s", b)
	}
	*g = GradYear{Year: n}
	return nil
}

// RegistrationRecord is one entry of a registration export.
type RegistrationRecord struct {
	Admin              bool     `json:"admin"`
	CADFillIn          string   `json:"cad_fill_in"`
	CADSkills          []Skill  `json:"cad_skills"`
	ChangeReason       string   `json:"change_reason"`
	ChangeTeams        bool     `json:"change_teams"`
	Email              string   `json:"email"`
	FirstExperience    bool     `json:"first_experience"`
	FirstName          string   `json:"first_name"`
	GradYear           GradYear `json:"grad_year"`
	LastName           string   `json:"last_name"`
	Paid               bool     `json:"paid"`
	ParentCOC          bool     `json:"parent_coc"`
	ParentEmail        string   `json:"parent_email"`
	ParentName         string   `json:"parent_name"`
	ParentPhone        string   `json:"parent_phone"`
	PermissionForm     bool     `json:"permission_form"`
	Phone              string   `json:"phone"`
	PreviousExperience bool     `json:"previous_experience"`
	ProgrammingSkills  []Skill  `json:"programming_skills"`
	RegistrationStatus string   `json:"registration_status"`
	StudentCOC         bool     `json:"student_coc"`
	TeamPreference     []string `json:"team_preference"`
}

// DirSource reads registration exports from a directory. Every *.json
// file holds an array of records; files that cannot be read or decoded
// are skipped.
type DirSource struct {
	dir string
	log logging.Logger
}

func NewDirSource(dir string, log logging.Logger) *DirSource {
	return &DirSource{dir: dir, log: log.With("component", "registrations")}
}

// FetchAll returns the records of every export, in file name order.
func (s *DirSource) FetchAll(ctx context.Context) ([]RegistrationRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing registration exports: %w", err)
	}

	out := []RegistrationRecord{}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(s.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.log.Warn("skipping unreadable export", "path", path, "error", err)
			continue
		}

		var recs []RegistrationRecord
		if err := json.Unmarshal(data, &recs); err != nil {
			s.log.Warn("skipping malformed export", "path", path, "error", err)
			continue
		}
		out = append(out, recs...)
	}
	return out, nil
}
