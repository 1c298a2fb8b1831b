package catalog

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/campusnotes/notes-admin/internal/models"
)

// Stats are the dashboard headline counters
type Stats struct {
	Users        int64 `json:"users"`
	Admins       int64 `json:"admins"`
	Notes        int64 `json:"notes"`
	PendingNotes int64 `json:"pending_notes"`
	Departments  int64 `json:"departments"`
	Subjects     int64 `json:"subjects"`
	Semesters    int64 `json:"semesters"`
}

// Stats counts every table concurrently. adminRole is the role value that
// grants dashboard access.
func (s *Service) Stats(ctx context.Context, adminRole string) (*Stats, error) {
	var st Stats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		st.Users, err = count[models.User](ctx, s.db, "")
		return err
	})
	g.Go(func() (err error) {
		st.Admins, err = count[models.User](ctx, s.db, "role = ?", adminRole)
		return err
	})
	g.Go(func() (err error) {
		st.Notes, err = count[models.Note](ctx, s.db, "")
		return err
	})
	g.Go(func() (err error) {
		st.PendingNotes, err = count[models.Note](ctx, s.db, "approved = ?", false)
		return err
	})
	g.Go(func() (err error) {
		st.Departments, err = count[models.Department](ctx, s.db, "")
		return err
	})
	g.Go(func() (err error) {
		st.Subjects, err = count[models.Subject](ctx, s.db, "")
		return err
	})
	g.Go(func() (err error) {
		st.Semesters, err = count[models.Semester](ctx, s.db, "")
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &st, nil
}

// RecentAudit returns the latest audit entries, newest first
func (s *Service) RecentAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
