// Package seed loads initial admins and academic structure from a YAML file.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/campusnotes/notes-admin/internal/catalog"
	"github.com/campusnotes/notes-admin/internal/models"
)

// File is the seed document
type File struct {
	Admins      []Admin      `yaml:"admins"`
	Departments []Department `yaml:"departments"`
	Semesters   []Semester   `yaml:"semesters"`
	Subjects    []Subject    `yaml:"subjects"`
}

type Admin struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
}

type Department struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type Semester struct {
	Number int    `yaml:"number"`
	Name   string `yaml:"name"`
}

// Subject refers to its department by code and its semester by number
type Subject struct {
	Code       string `yaml:"code"`
	Name       string `yaml:"name"`
	Department string `yaml:"department"`
	Semester   int    `yaml:"semester"`
}

// Counts tallies what Apply did for one kind of record
type Counts struct {
	Created  int
	Existing int
}

func (c *Counts) add(created bool) {
	if created {
		c.Created++
	} else {
		c.Existing++
	}
}

type Summary struct {
	Admins      Counts
	Departments Counts
	Semesters   Counts
	Subjects    Counts
}

// Load reads and parses a seed file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a seed document. Unknown fields are rejected so typos do
// not silently drop data.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &f, nil
}

// Apply upserts admins and creates missing departments, semesters and
// subjects. Existing academic records are left as they are; admin passwords
// and names are reset to the file's values.
func Apply(ctx context.Context, cat *catalog.Service, f *File, log zerolog.Logger) (Summary, error) {
	var sum Summary

	for _, a := range f.Admins {
		user, created, err := cat.UpsertUser(ctx, catalog.UserCreateInput{
			Email:    a.Email,
			Name:     a.Name,
			Password: a.Password,
			Role:     models.RoleAdmin,
		})
		if err != nil {
			return sum, fmt.Errorf("admin %s: %w", a.Email, err)
		}
		sum.Admins.add(created)
		log.Info().Str("email", user.Email).Bool("created", created).Msg("Seeded admin")
	}

	departments := make(map[string]string, len(f.Departments))
	for _, d := range f.Departments {
		dept, created, err := cat.EnsureDepartment(ctx, catalog.DepartmentInput{Code: d.Code, Name: d.Name})
		if err != nil {
			return sum, fmt.Errorf("department %s: %w", d.Code, err)
		}
		departments[dept.Code] = dept.ID
		sum.Departments.add(created)
	}

	semesters := make(map[int]string, len(f.Semesters))
	for _, s := range f.Semesters {
		sem, created, err := cat.EnsureSemester(ctx, catalog.SemesterInput{Number: s.Number, Name: s.Name})
		if err != nil {
			return sum, fmt.Errorf("semester %d: %w", s.Number, err)
		}
		semesters[sem.Number] = sem.ID
		sum.Semesters.add(created)
	}

	for _, s := range f.Subjects {
		deptID, ok := departments[strings.ToUpper(strings.TrimSpace(s.Department))]
		if !ok {
			return sum, fmt.Errorf("subject %s: department %q is not in the seed file", s.Code, s.Department)
		}
		semID, ok := semesters[s.Semester]
		if !ok {
			return sum, fmt.Errorf("subject %s: semester %d is not in the seed file", s.Code, s.Semester)
		}
		_, created, err := cat.EnsureSubject(ctx, catalog.SubjectInput{
			Code:         s.Code,
			Name:         s.Name,
			DepartmentID: deptID,
			SemesterID:   semID,
		})
		if err != nil {
			return sum, fmt.Errorf("subject %s: %w", s.Code, err)
		}
		sum.Subjects.add(created)
	}

	return sum, nil
}
