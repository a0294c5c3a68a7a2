package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/csvinsights/internal/http/response"
	"github.com/KaramelBytes/csvinsights/internal/services"
)

// APIVersion is reported by the root endpoint.
const APIVersion = "1.0.0"

type StatusHandler struct {
	status services.StatusService
}

func NewStatusHandler(status services.StatusService) *StatusHandler {
	return &StatusHandler{status: status}
}

// Status always answers 200; failing dependencies are described per field.
func (h *StatusHandler) Status(c *gin.Context) {
	response.RespondOK(c, h.status.Check(c.Request.Context()))
}

func (h *StatusHandler) Root(c *gin.Context) {
	response.RespondOK(c, gin.H{"message": "CSV Insights Dashboard API", "version": APIVersion})
}
