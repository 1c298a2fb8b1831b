package catalog

import (
	"context"
	"strings"

	"github.com/campusnotes/notes-admin/internal/models"
)

type NoteInput struct {
	Title       string `json:"title" form:"title" validate:"required,max=200"`
	Description string `json:"description" form:"description" validate:"max=2000"`
	FileURL     string `json:"file_url" form:"file_url" validate:"required,url"`
	SubjectID   string `json:"subject_id" form:"subject_id" validate:"required"`
	Approved    bool   `json:"approved" form:"approved"`
}

func (in *NoteInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.FileURL = strings.TrimSpace(in.FileURL)
}

// NoteFilter narrows a note listing. Zero values match everything.
type NoteFilter struct {
	SubjectID   string `form:"subject_id"`
	PendingOnly bool   `form:"pending"`
}

func (s *Service) Notes(ctx context.Context, f NoteFilter) ([]models.Note, error) {
	query := s.db.WithContext(ctx).Preload("Subject").Preload("UploadedBy")
	if f.SubjectID != "" {
		query = query.Where("subject_id = ?", f.SubjectID)
	}
	if f.PendingOnly {
		query = query.Where("approved = ?", false)
	}

	var notes []models.Note
	if err := query.Order("created_at DESC").Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

func (s *Service) Note(ctx context.Context, id string) (*models.Note, error) {
	return get[models.Note](ctx, s.db, id, "Subject", "UploadedBy")
}

// CreateNote stores a note on behalf of uploaderID, which may be empty for
// notes imported without an owner.
func (s *Service) CreateNote(ctx context.Context, uploaderID string, in NoteInput) (*models.Note, error) {
	in.normalize()
	if err := s.validate(in); err != nil {
		return nil, err
	}
	if n, err := count[models.Subject](ctx, s.db, "id = ?", in.SubjectID); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrInvalidReference
	}

	note := &models.Note{
		Title:       in.Title,
		Description: in.Description,
		FileURL:     in.FileURL,
		SubjectID:   in.SubjectID,
		Approved:    in.Approved,
	}
	if uploaderID != "" {
		note.UploadedByID = &uploaderID
	}
	if err := s.db.WithContext(ctx).Create(note).Error; err != nil {
		return nil, translate(err)
	}
	return s.Note(ctx, note.ID)
}

func (s *Service) UpdateNote(ctx context.Context, id string, in NoteInput) (*models.Note, error) {
	in.normalize()
	if err := s.validate(in); err != nil {
		return nil, err
	}
	if _, err := get[models.Note](ctx, s.db, id); err != nil {
		return nil, err
	}
	if n, err := count[models.Subject](ctx, s.db, "id = ?", in.SubjectID); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrInvalidReference
	}

	err := s.db.WithContext(ctx).Model(&models.Note{}).Where("id = ?", id).Updates(map[string]any{
		"title":       in.Title,
		"description": in.Description,
		"file_url":    in.FileURL,
		"subject_id":  in.SubjectID,
		"approved":    in.Approved,
	}).Error
	if err != nil {
		return nil, translate(err)
	}
	return s.Note(ctx, id)
}

// SetNoteApproval publishes or hides a note
func (s *Service) SetNoteApproval(ctx context.Context, id string, approved bool) (*models.Note, error) {
	result := s.db.WithContext(ctx).Model(&models.Note{}).Where("id = ?", id).Update("approved", approved)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Note(ctx, id)
}

func (s *Service) DeleteNote(ctx context.Context, id string) error {
	return remove[models.Note](ctx, s.db, id)
}
