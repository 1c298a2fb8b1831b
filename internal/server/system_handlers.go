package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusnotes/notes-admin/internal/sysinfo"
)

// SystemInfoResponse describes the running admin server
type SystemInfoResponse struct {
	Version        string          `json:"version"`
	GatesMounted   int             `json:"gates_mounted"`
	AuditEnabled   bool            `json:"audit_enabled"`
	CredentialMode string          `json:"credential_store"`
	System         sysinfo.Metrics `json:"system"`
}

// @Summary Get server and host information
// @Tags system
// @Produce json
// @Success 200 {object} SystemInfoResponse
// @Failure 500 {object} map[string]interface{}
// @Router /api/system/info [get]
func (s *Server) getSystemInfo(c *gin.Context) {
	metrics, err := sysinfo.Collect(s.config.Database.URL)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to collect system metrics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to collect system metrics"})
		return
	}

	c.JSON(http.StatusOK, SystemInfoResponse{
		Version:        s.version,
		GatesMounted:   s.gates.Len(),
		AuditEnabled:   s.tasks != nil,
		CredentialMode: s.config.Gate.CredentialStore,
		System:         metrics,
	})
}
