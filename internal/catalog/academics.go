package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/campusnotes/notes-admin/internal/models"
)

type DepartmentInput struct {
	Name string `json:"name" form:"name" validate:"required,max=120"`
	Code string `json:"code" form:"code" validate:"required,alphanumdash,max=16"`
}

type SemesterInput struct {
	Name   string `json:"name" form:"name" validate:"required,max=60"`
	Number int    `json:"number" form:"number" validate:"required,min=1,max=12"`
}

type SubjectInput struct {
	Name         string `json:"name" form:"name" validate:"required,max=120"`
	Code         string `json:"code" form:"code" validate:"required,alphanumdash,max=16"`
	DepartmentID string `json:"department_id" form:"department_id" validate:"required"`
	SemesterID   string `json:"semester_id" form:"semester_id" validate:"required"`
}

func (in *DepartmentInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
}

func (in *SemesterInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
}

func (in *SubjectInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
}

// Departments

func (s *Service) Departments(ctx context.Context) ([]models.Department, error) {
	return list[models.Department](ctx, s.db, "name")
}

func (s *Service) Department(ctx context.Context, id string) (*models.Department, error) {
	return get[models.Department](ctx, s.db, id)
}

func (s *Service) CreateDepartment(ctx context.Context, in DepartmentInput) (*models.Department, error) {
	in.normalize()
	if err := s.validate(in); err != nil {
		return nil, err
	}
	dept := &models.Department{Name: in.Name, Code: in.Code}
	if err := s.db.WithContext(ctx).Create(dept).Error; err != nil {
		return nil, translate(err)
	}
	return dept, nil
}

func (s *Service) UpdateDepartment(ctx context.Context, id string, in DepartmentInput) (*models.Department, error) {
	in.normalize()
	if err := s.validate(in); err != nil {
		return nil, err
	}
	dept, err := s.Department(ctx, id)
	if err != nil {
		return nil, err
	}
	dept.Name, dept.Code = in.Name, in.Code
	if err := s.db.WithContext(ctx).Save(dept).Error; err != nil {
		return nil, translate(err)
	}
	return dept, nil
}

// DeleteDepartment removes the department with its subjects and their notes
func (s *Service) DeleteDepartment(ctx context.Context, id string) error {
	return remove[models.Department](ctx, s.db, id)
}

// Semesters

func (s *Service) Semesters(ctx context.Context) ([]models.Semester, error) {
	return list[models.Semester](ctx, s.db, "number")
}

func (s *Service) Semester(ctx context.Context, id string) (*models.Semester, error) {
	return get[models.Semester](ctx, s.db, id)
}

func (s *Service) CreateSemester(ctx context.Context, in SemesterInput) (*models.Semester, error) {
	in.normalize()
	if err := s.validate(in); err != nil {
		return nil, err
	}
	sem := &models.Semester{Name: in.Name, Number: in.Number}
	if err := s.db.WithContext(ctx).Create(sem).Error; err != nil {
		return nil, translate(err)
	}
	return sem, nil
}

func (s *Service) UpdateSemester(ctx context.Context, id string, in SemesterInput) (*models.Semester, error) {
	in.normalize()
	if err := s.validate(in); err != nil {
		return nil, err
	}
	sem, err := s.Semester(ctx, id)
	if err != nil {
		return nil, err
	}
	sem.Name, sem.Number = in.Name, in.Number
	if err := s.db.WithContext(ctx).Save(sem).Error; err != nil {
		return nil, translate(err)
	}
	return sem, nil
}

func (s *Service) DeleteSemester(ctx context.Context, id string) error {
	return remove[models.Semester](ctx, s.db, id)
}

// Subjects

func (s *Service) Subjects(ctx context.Context) ([]models.Subject, error) {
	return list[models.Subject](ctx, s.db, "code", "Department", "Semester")
}

func (s *Service) Subject(ctx context.Context, id string) (*models.Subject, error) {
	return get[models.Subject](ctx, s.db, id, "Department", "Semester")
}

func (s *Service) CreateSubject(ctx context.Context, in SubjectInput) (*models.Subject, error) {
	in.normalize()
	if err := s.validate(in); err != nil {
		return nil, err
	}
	if err := s.checkSubjectRefs(ctx, in); err != nil {
		return nil, err
	}
	subj := &models.Subject{
		Name:         in.Name,
		Code:         in.Code,
		DepartmentID: in.DepartmentID,
		SemesterID:   in.SemesterID,
	}
	if err := s.db.WithContext(ctx).Create(subj).Error; err != nil {
		return nil, translate(err)
	}
	return s.Subject(ctx, subj.ID)
}

func (s *Service) UpdateSubject(ctx context.Context, id string, in SubjectInput) (*models.Subject, error) {
	in.normalize()
	if err := s.validate(in); err != nil {
		return nil, err
	}
	subj, err := get[models.Subject](ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkSubjectRefs(ctx, in); err != nil {
		return nil, err
	}
	subj.Name, subj.Code = in.Name, in.Code
	subj.DepartmentID, subj.SemesterID = in.DepartmentID, in.SemesterID
	if err := s.db.WithContext(ctx).Save(subj).Error; err != nil {
		return nil, translate(err)
	}
	return s.Subject(ctx, id)
}

func (s *Service) DeleteSubject(ctx context.Context, id string) error {
	return remove[models.Subject](ctx, s.db, id)
}

// checkSubjectRefs reports a missing department or semester before the
// insert, so SQLite and Postgres fail the same way.
func (s *Service) checkSubjectRefs(ctx context.Context, in SubjectInput) error {
	if n, err := count[models.Department](ctx, s.db, "id = ?", in.DepartmentID); err != nil {
		return err
	} else if n == 0 {
		return ErrInvalidReference
	}
	if n, err := count[models.Semester](ctx, s.db, "id = ?", in.SemesterID); err != nil {
		return err
	} else if n == 0 {
		return ErrInvalidReference
	}
	return nil
}

// EnsureDepartment returns the department with the input's code, creating it
// when missing. Existing rows are left untouched.
func (s *Service) EnsureDepartment(ctx context.Context, in DepartmentInput) (*models.Department, bool, error) {
	in.normalize()
	var dept models.Department
	err := translate(s.db.WithContext(ctx).Where("code = ?", in.Code).First(&dept).Error)
	if errors.Is(err, ErrNotFound) {
		created, err := s.CreateDepartment(ctx, in)
		return created, err == nil, err
	}
	if err != nil {
		return nil, false, err
	}
	return &dept, false, nil
}

// EnsureSemester returns the semester with the input's number, creating it
// when missing.
func (s *Service) EnsureSemester(ctx context.Context, in SemesterInput) (*models.Semester, bool, error) {
	in.normalize()
	var sem models.Semester
	err := translate(s.db.WithContext(ctx).Where("number = ?", in.Number).First(&sem).Error)
	if errors.Is(err, ErrNotFound) {
		created, err := s.CreateSemester(ctx, in)
		return created, err == nil, err
	}
	if err != nil {
		return nil, false, err
	}
	return &sem, false, nil
}

// EnsureSubject returns the subject with the input's code, creating it when
// missing.
func (s *Service) EnsureSubject(ctx context.Context, in SubjectInput) (*models.Subject, bool, error) {
	in.normalize()
	var subj models.Subject
	err := translate(s.db.WithContext(ctx).Where("code = ?", in.Code).First(&subj).Error)
	if errors.Is(err, ErrNotFound) {
		created, err := s.CreateSubject(ctx, in)
		return created, err == nil, err
	}
	if err != nil {
		return nil, false, err
	}
	return &subj, false, nil
}
