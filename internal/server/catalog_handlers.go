package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusnotes/notes-admin/internal/catalog"
	"github.com/campusnotes/notes-admin/internal/models"
	"github.com/campusnotes/notes-admin/internal/tasks"
)

const auditPageSize = 100

// ApprovalRequest toggles a note's visibility
type ApprovalRequest struct {
	Approved bool `json:"approved" form:"approved"`
}

func (s *Server) resources() []registrar {
	cat := s.catalog
	return []registrar{
		resource[catalog.DepartmentInput, catalog.DepartmentInput]{
			entity: "department", path: "departments", template: "departments.html",
			list: func(c *gin.Context) (any, error) { return cat.Departments(c.Request.Context()) },
			get:  func(c *gin.Context, id string) (any, error) { return cat.Department(c.Request.Context(), id) },
			create: func(c *gin.Context, in catalog.DepartmentInput) (string, any, error) {
				d, err := cat.CreateDepartment(c.Request.Context(), in)
				if err != nil {
					return "", nil, err
				}
				return d.ID, d, nil
			},
			update: func(c *gin.Context, id string, in catalog.DepartmentInput) (any, error) {
				return cat.UpdateDepartment(c.Request.Context(), id, in)
			},
			remove: func(c *gin.Context, id string) error { return cat.DeleteDepartment(c.Request.Context(), id) },
		},
		resource[catalog.SemesterInput, catalog.SemesterInput]{
			entity: "semester", path: "semesters", template: "semesters.html",
			list: func(c *gin.Context) (any, error) { return cat.Semesters(c.Request.Context()) },
			get:  func(c *gin.Context, id string) (any, error) { return cat.Semester(c.Request.Context(), id) },
			create: func(c *gin.Context, in catalog.SemesterInput) (string, any, error) {
				sem, err := cat.CreateSemester(c.Request.Context(), in)
				if err != nil {
					return "", nil, err
				}
				return sem.ID, sem, nil
			},
			update: func(c *gin.Context, id string, in catalog.SemesterInput) (any, error) {
				return cat.UpdateSemester(c.Request.Context(), id, in)
			},
			remove: func(c *gin.Context, id string) error { return cat.DeleteSemester(c.Request.Context(), id) },
		},
		resource[catalog.SubjectInput, catalog.SubjectInput]{
			entity: "subject", path: "subjects", template: "subjects.html",
			list: func(c *gin.Context) (any, error) { return cat.Subjects(c.Request.Context()) },
			get:  func(c *gin.Context, id string) (any, error) { return cat.Subject(c.Request.Context(), id) },
			create: func(c *gin.Context, in catalog.SubjectInput) (string, any, error) {
				subj, err := cat.CreateSubject(c.Request.Context(), in)
				if err != nil {
					return "", nil, err
				}
				return subj.ID, subj, nil
			},
			update: func(c *gin.Context, id string, in catalog.SubjectInput) (any, error) {
				return cat.UpdateSubject(c.Request.Context(), id, in)
			},
			remove: func(c *gin.Context, id string) error { return cat.DeleteSubject(c.Request.Context(), id) },
			page: func(c *gin.Context, data gin.H) error {
				depts, err := cat.Departments(c.Request.Context())
				if err != nil {
					return err
				}
				sems, err := cat.Semesters(c.Request.Context())
				if err != nil {
					return err
				}
				data["Departments"], data["Semesters"] = depts, sems
				return nil
			},
		},
		resource[catalog.NoteInput, catalog.NoteInput]{
			entity: "note", path: "notes", template: "notes.html",
			list: func(c *gin.Context) (any, error) {
				var f catalog.NoteFilter
				if err := c.ShouldBindQuery(&f); err != nil {
					return nil, &catalog.ValidationError{Fields: map[string]string{"query": "is malformed"}}
				}
				return cat.Notes(c.Request.Context(), f)
			},
			get: func(c *gin.Context, id string) (any, error) { return cat.Note(c.Request.Context(), id) },
			create: func(c *gin.Context, in catalog.NoteInput) (string, any, error) {
				actor, err := s.actor(c)
				if err != nil {
					return "", nil, err
				}
				n, err := cat.CreateNote(c.Request.Context(), actor.ID, in)
				if err != nil {
					return "", nil, err
				}
				return n.ID, n, nil
			},
			update: func(c *gin.Context, id string, in catalog.NoteInput) (any, error) {
				return cat.UpdateNote(c.Request.Context(), id, in)
			},
			remove: func(c *gin.Context, id string) error { return cat.DeleteNote(c.Request.Context(), id) },
			page: func(c *gin.Context, data gin.H) error {
				subjects, err := cat.Subjects(c.Request.Context())
				data["Subjects"] = subjects
				return err
			},
		},
		resource[catalog.UserCreateInput, catalog.UserUpdateInput]{
			entity: "user", path: "users", template: "users.html",
			list: func(c *gin.Context) (any, error) { return cat.Users(c.Request.Context()) },
			get:  func(c *gin.Context, id string) (any, error) { return cat.User(c.Request.Context(), id) },
			create: func(c *gin.Context, in catalog.UserCreateInput) (string, any, error) {
				u, err := cat.CreateUser(c.Request.Context(), in)
				if err != nil {
					return "", nil, err
				}
				return u.ID, u, nil
			},
			update: func(c *gin.Context, id string, in catalog.UserUpdateInput) (any, error) {
				u, err := cat.UpdateUser(c.Request.Context(), id, in)
				if err != nil {
					return nil, err
				}
				// open sessions re-check the role before their next request
				s.auth.UserUpdated(id)
				return u, nil
			},
			remove: func(c *gin.Context, id string) error {
				actor, err := s.actor(c)
				if err != nil {
					return err
				}
				if err := cat.DeleteUser(c.Request.Context(), id, actor.ID); err != nil {
					return err
				}
				s.auth.SignOutUser(id)
				return nil
			},
		},
	}
}

func (s *Server) dashboardPage(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := s.catalog.Stats(ctx, s.config.Gate.AdminRole)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load dashboard stats")
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}
	pending, err := s.catalog.Notes(ctx, catalog.NoteFilter{PendingOnly: true})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load pending notes")
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}

	data := gin.H{"Title": "Dashboard", "Stats": stats, "Pending": pending}
	if actor, err := s.actor(c); err == nil {
		data["Actor"] = actor
	}
	c.HTML(http.StatusOK, "dashboard.html", data)
}

func (s *Server) auditPage(c *gin.Context) {
	entries, err := s.catalog.RecentAudit(c.Request.Context(), auditPageSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load audit log")
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}

	data := gin.H{"Title": "Audit log", "Items": entries, "Enabled": s.tasks != nil}
	if actor, err := s.actor(c); err == nil {
		data["Actor"] = actor
	}
	c.HTML(http.StatusOK, "audit.html", data)
}

// @Router /api/stats [get]
// @Success 200 {object} catalog.Stats
func (s *Server) getStats(c *gin.Context) {
	stats, err := s.catalog.Stats(c.Request.Context(), s.config.Gate.AdminRole)
	if err != nil {
		s.respondCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Router /api/notes/{id}/approval [patch]
// @Param request body ApprovalRequest true "Approval"
// @Success 200 {object} models.Note
func (s *Server) setNoteApproval(c *gin.Context) {
	var req ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	note, err := s.approve(c, req.Approved)
	if err != nil {
		s.respondCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (s *Server) setNoteApprovalForm(c *gin.Context) {
	var req ApprovalRequest
	if err := c.ShouldBind(&req); err != nil {
		c.Redirect(http.StatusSeeOther, "/notes")
		return
	}
	if _, err := s.approve(c, req.Approved); err != nil {
		status, message := catalogError(err)
		c.String(status, message)
		return
	}
	c.Redirect(http.StatusSeeOther, "/notes")
}

func (s *Server) approve(c *gin.Context, approved bool) (*models.Note, error) {
	id := c.Param("id")
	note, err := s.catalog.SetNoteApproval(c.Request.Context(), id, approved)
	if err != nil {
		return nil, err
	}
	s.auditActor(c, tasks.ActionUpdate, "note", id)
	return note, nil
}
