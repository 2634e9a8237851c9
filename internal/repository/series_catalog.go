package repository

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/lessonsync-api/internal/models"
)

type seriesFile struct {
	Series []seriesEntry `yaml:"series"`
}

type seriesEntry struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Group       string   `yaml:"group"`
	TeacherID   string   `yaml:"teacher_id"`
	TeacherName string   `yaml:"teacher_name"`
	Days        []string `yaml:"days"`
	Time        string   `yaml:"time"`
}

// SeriesCatalog is the immutable set of recurring lessons loaded at startup.
type SeriesCatalog struct {
	ordered []models.Series
	byID    map[string]models.Series
}

// LoadSeriesCatalog reads the YAML series file at path.
func LoadSeriesCatalog(path string) (*SeriesCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read series file: %w", err)
	}
	return ParseSeriesCatalog(raw)
}

// ParseSeriesCatalog decodes a YAML document of the form:
//
//	series:
//	  - id: math-g1
//	    title: Math
//	    group: G1
//	    teacher_id: "1001"
//	    days: [mon, thu]
//	    time: "18:00"
func ParseSeriesCatalog(raw []byte) (*SeriesCatalog, error) {
	var doc seriesFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse series file: %w", err)
	}

	series := make([]models.Series, 0, len(doc.Series))
	for _, entry := range doc.Series {
		s, err := entry.toModel()
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	return NewSeriesCatalog(series)
}

// NewSeriesCatalog validates series and indexes them by id.
func NewSeriesCatalog(series []models.Series) (*SeriesCatalog, error) {
	catalog := &SeriesCatalog{byID: make(map[string]models.Series, len(series))}
	for _, s := range series {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := catalog.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate series id %s", s.ID)
		}
		catalog.byID[s.ID] = s
		catalog.ordered = append(catalog.ordered, s)
	}
	sort.SliceStable(catalog.ordered, func(i, j int) bool { return catalog.ordered[i].ID < catalog.ordered[j].ID })
	return catalog, nil
}

func (e seriesEntry) toModel() (models.Series, error) {
	s := models.Series{
		ID:          strings.TrimSpace(e.ID),
		Title:       e.Title,
		GroupName:   strings.TrimSpace(e.Group),
		TeacherID:   strings.TrimSpace(e.TeacherID),
		TeacherName: e.TeacherName,
	}
	if s.Title == "" {
		s.Title = s.ID
	}
	for _, raw := range e.Days {
		day, err := models.ParseWeekday(raw)
		if err != nil {
			return models.Series{}, fmt.Errorf("series %s: %w", s.ID, err)
		}
		s.Days = append(s.Days, day)
	}
	if _, err := fmt.Sscanf(e.Time, "%d:%d", &s.Hour, &s.Minute); err != nil {
		return models.Series{}, fmt.Errorf("series %s: time must be HH:MM: %w", s.ID, err)
	}
	return s, nil
}

// All returns every series ordered by id.
func (c *SeriesCatalog) All() []models.Series {
	return append([]models.Series(nil), c.ordered...)
}

// Get returns the series with id.
func (c *SeriesCatalog) Get(id string) (models.Series, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// ByGroups returns series whose group is in groups.
func (c *SeriesCatalog) ByGroups(groups ...string) []models.Series {
	wanted := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		wanted[g] = struct{}{}
	}
	var out []models.Series
	for _, s := range c.ordered {
		if _, ok := wanted[s.GroupName]; ok {
			out = append(out, s)
		}
	}
	return out
}

// ByTeacher returns series taught by teacherID.
func (c *SeriesCatalog) ByTeacher(teacherID string) []models.Series {
	var out []models.Series
	for _, s := range c.ordered {
		if s.TeacherID == teacherID {
			out = append(out, s)
		}
	}
	return out
}
