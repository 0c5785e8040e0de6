package stubapi

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/stemsi/simulado/internal/model"
	"gopkg.in/yaml.v3"
)

// Fixtures is the seed data the stub serves.
type Fixtures struct {
	Users     []FixtureUser     `yaml:"users"`
	Simulados []FixtureSimulado `yaml:"simulados"`
}

type FixtureUser struct {
	ID       int    `yaml:"id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Email    string `yaml:"email"`
}

type FixtureSimulado struct {
	ID        int               `yaml:"id"`
	UserID    int               `yaml:"user_id"`
	Areas     []string          `yaml:"areas"`
	Finalized bool              `yaml:"finalized"`
	CreatedAt time.Time         `yaml:"created_at"`
	Questions []FixtureQuestion `yaml:"questions"`
}

type FixtureQuestion struct {
	ID         int      `yaml:"id"`
	Area       string   `yaml:"area"`
	Discipline string   `yaml:"discipline"`
	Prompt     string   `yaml:"prompt"`
	Choices    []string `yaml:"choices"`
}

// LoadFixtures reads a fixtures file from disk.
func LoadFixtures(path string) (*Fixtures, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close()
	return ParseFixtures(f)
}

func ParseFixtures(r io.Reader) (*Fixtures, error) {
	fx := &Fixtures{}
	if err := yaml.NewDecoder(r).Decode(fx); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	if err := fx.check(); err != nil {
		return nil, err
	}
	return fx, nil
}

func (fx *Fixtures) check() error {
	seen := make(map[int]bool)
	for _, s := range fx.Simulados {
		if s.ID <= 0 {
			return fmt.Errorf("simulado with invalid id %d", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate simulado id %d", s.ID)
		}
		seen[s.ID] = true
		for _, q := range s.Questions {
			if len(q.Choices) != model.ChoiceCount {
				return fmt.Errorf("simulado %d question %d: want %d choices, got %d",
					s.ID, q.ID, model.ChoiceCount, len(q.Choices))
			}
		}
	}
	return nil
}

func (s FixtureSimulado) session() model.Session {
	out := model.Session{ID: s.ID, Finalized: s.Finalized}
	for _, a := range s.Areas {
		out.SelectedAreas = append(out.SelectedAreas, model.ParseKnowledgeArea(a))
	}
	if !s.CreatedAt.IsZero() {
		out.CreatedAt = &model.Timestamp{Time: s.CreatedAt}
	}
	return out
}

func (s FixtureSimulado) questions() []model.Question {
	out := make([]model.Question, 0, len(s.Questions))
	for _, q := range s.Questions {
		out = append(out, model.Question{
			ID:         q.ID,
			Area:       q.Area,
			Discipline: q.Discipline,
			Prompt:     q.Prompt,
			Choices:    append([]string(nil), q.Choices...),
		})
	}
	return out
}
