package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusnotes/notes-admin/internal/catalog"
	"github.com/campusnotes/notes-admin/internal/tasks"
)

// resource binds one catalog entity to its HTML pages and JSON endpoints.
// C and U are the create and update inputs.
type resource[C, U any] struct {
	entity   string // audit entity name
	path     string // URL segment
	template string

	list   func(c *gin.Context) (any, error)
	get    func(c *gin.Context, id string) (any, error)
	create func(c *gin.Context, in C) (string, any, error)
	update func(c *gin.Context, id string, in U) (any, error)
	remove func(c *gin.Context, id string) error

	// page adds the lookups the HTML page needs besides the list
	page func(c *gin.Context, data gin.H) error
}

// registrar hides the input types so resources of different entities can be
// registered in one loop
type registrar interface {
	registerPages(s *Server, g *gin.RouterGroup)
	registerAPI(s *Server, g *gin.RouterGroup)
}

func (r resource[C, U]) registerAPI(s *Server, g *gin.RouterGroup) {
	base := "/" + r.path

	g.GET(base, func(c *gin.Context) {
		items, err := r.list(c)
		if err != nil {
			s.respondCatalogError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	})

	g.GET(base+"/:id", func(c *gin.Context) {
		item, err := r.get(c, c.Param("id"))
		if err != nil {
			s.respondCatalogError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	})

	g.POST(base, func(c *gin.Context) {
		var in C
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, item, err := r.create(c, in)
		if err != nil {
			s.respondCatalogError(c, err)
			return
		}
		s.auditActor(c, tasks.ActionCreate, r.entity, id)
		c.JSON(http.StatusCreated, item)
	})

	g.PUT(base+"/:id", func(c *gin.Context) {
		var in U
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		item, err := r.update(c, c.Param("id"), in)
		if err != nil {
			s.respondCatalogError(c, err)
			return
		}
		s.auditActor(c, tasks.ActionUpdate, r.entity, c.Param("id"))
		c.JSON(http.StatusOK, item)
	})

	g.DELETE(base+"/:id", func(c *gin.Context) {
		if err := r.remove(c, c.Param("id")); err != nil {
			s.respondCatalogError(c, err)
			return
		}
		s.auditActor(c, tasks.ActionDelete, r.entity, c.Param("id"))
		c.Status(http.StatusNoContent)
	})
}

func (r resource[C, U]) registerPages(s *Server, g *gin.RouterGroup) {
	base := "/" + r.path

	render := func(c *gin.Context, status int, message string) {
		data := gin.H{"Title": r.entity, "Error": message}
		if actor, err := s.actor(c); err == nil {
			data["Actor"] = actor
		}
		items, err := r.list(c)
		if err == nil && r.page != nil {
			err = r.page(c, data)
		}
		if err != nil {
			if code, msg := catalogError(err); code != http.StatusInternalServerError {
				data["Error"] = msg
				c.HTML(code, r.template, data)
				return
			}
			s.logger.Error().Err(err).Str("entity", r.entity).Msg("Failed to load page")
			c.String(http.StatusInternalServerError, "Internal server error")
			return
		}
		data["Items"] = items
		c.HTML(status, r.template, data)
	}

	// failed form posts re-render the list with the error
	fail := func(c *gin.Context, err error) {
		status, message := catalogError(err)
		if status == http.StatusInternalServerError {
			s.logger.Error().Err(err).Str("entity", r.entity).Msg("Catalog operation failed")
		}
		render(c, status, message)
	}

	g.GET(base, func(c *gin.Context) {
		render(c, http.StatusOK, "")
	})

	g.POST(base, func(c *gin.Context) {
		var in C
		if err := c.ShouldBind(&in); err != nil {
			render(c, http.StatusBadRequest, "The form could not be read")
			return
		}
		id, _, err := r.create(c, in)
		if err != nil {
			fail(c, err)
			return
		}
		s.auditActor(c, tasks.ActionCreate, r.entity, id)
		c.Redirect(http.StatusSeeOther, base)
	})

	g.POST(base+"/:id", func(c *gin.Context) {
		var in U
		if err := c.ShouldBind(&in); err != nil {
			render(c, http.StatusBadRequest, "The form could not be read")
			return
		}
		if _, err := r.update(c, c.Param("id"), in); err != nil {
			fail(c, err)
			return
		}
		s.auditActor(c, tasks.ActionUpdate, r.entity, c.Param("id"))
		c.Redirect(http.StatusSeeOther, base)
	})

	g.POST(base+"/:id/delete", func(c *gin.Context) {
		if err := r.remove(c, c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		s.auditActor(c, tasks.ActionDelete, r.entity, c.Param("id"))
		c.Redirect(http.StatusSeeOther, base)
	})
}

// catalogError maps catalog errors to a status and a user-facing message
func catalogError(err error) (int, string) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, catalog.ErrConflict):
		return http.StatusConflict, "A record with the same name, code or number already exists"
	case errors.Is(err, catalog.ErrInvalidReference):
		return http.StatusUnprocessableEntity, "A referenced record does not exist"
	case errors.Is(err, catalog.ErrSelfDelete):
		return http.StatusForbidden, "You cannot delete your own account"
	case errors.Is(err, ErrActorNotFound):
		return http.StatusUnauthorized, "Admin session required"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (s *Server) respondCatalogError(c *gin.Context, err error) {
	status, message := catalogError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("Catalog operation failed")
	}

	var verr *catalog.ValidationError
	if errors.As(err, &verr) {
		c.JSON(status, gin.H{"error": message, "fields": verr.Fields})
		return
	}
	c.JSON(status, gin.H{"error": message})
}

// auditActor records the mutation on behalf of the request's admin
func (s *Server) auditActor(c *gin.Context, action, entity, entityID string) {
	actor, err := s.actor(c)
	if err != nil {
		s.logger.Warn().Err(err).Str("entity", entity).Msg("Unknown actor, audit entry skipped")
		return
	}
	s.audit(c, actor, action, entity, entityID)
}

// audit enqueues an audit entry. Failures are logged and never fail the request.
func (s *Server) audit(c *gin.Context, actor Actor, action, entity, entityID string) {
	if s.tasks == nil {
		return
	}

	task, err := tasks.NewAuditTask(tasks.AuditPayload{
		Actor:    actor.Email,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
	})
	if err == nil {
		_, err = s.tasks.EnqueueContext(c.Request.Context(), task)
	}
	if err != nil {
		s.metrics.AuditEnqueueErrs.Inc()
		s.logger.Warn().Err(err).Str("action", action).Str("entity", entity).Msg("Failed to enqueue audit entry")
	}
}
