package handlers

import (
	"errors"
	"net/http"

	"lexflow-backend/models"
	"lexflow-backend/repository"
	"lexflow-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RunHandler handles HTTP requests for research runs
type RunHandler struct {
	runService *service.RunService
	runRepo    *repository.RunRepository
	sideRepo   *repository.SideTableRepository
}

// NewRunHandler creates a new run handler
func NewRunHandler(runService *service.RunService, runRepo *repository.RunRepository, sideRepo *repository.SideTableRepository) *RunHandler {
	return &RunHandler{
		runService: runService,
		runRepo:    runRepo,
		sideRepo:   sideRepo,
	}
}

// CreateRunRequest represents the request body for executing a run
type CreateRunRequest struct {
	OrgID                string                 `json:"org_id" binding:"required"`
	UserID               string                 `json:"user_id" binding:"required"`
	Question             string                 `json:"question" binding:"required"`
	Context              *string                `json:"context"`
	Confidential         bool                   `json:"confidential"`
	AgentCode            *string                `json:"agent"`
	AgentSettings        map[string]interface{} `json:"agent_settings"`
	ConsentVersion       string                 `json:"consent_version"`
	CouncilDisclosureAck bool                   `json:"council_disclosure_ack"`
}

// CreateRun handles POST /api/runs
func (h *RunHandler) CreateRun(c *gin.Context) {
	var req CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	orgID, err := uuid.Parse(req.OrgID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ORG_ID",
				"message": "Invalid org_id format",
			},
		})
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_USER_ID",
				"message": "Invalid user_id format",
			},
		})
		return
	}

	serviceReq := service.ExecuteRunRequest{
		OrgID:         orgID,
		UserID:        userID,
		Question:      req.Question,
		Context:       req.Context,
		Confidential:  req.Confidential,
		AgentCode:     req.AgentCode,
		AgentSettings: req.AgentSettings,
		Access: models.AccessContext{
			OrgID:                orgID,
			UserID:               userID,
			ConsentVersion:       req.ConsentVersion,
			CouncilDisclosureAck: req.CouncilDisclosureAck,
		},
	}

	result, err := h.runService.ExecuteRun(c.Request.Context(), serviceReq)
	if err != nil {
		if errors.Is(err, service.ErrMissingQuestion) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "MISSING_QUESTION",
					"message": err.Error(),
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RUN_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetRun handles GET /api/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_RUN_ID",
				"message": "Invalid run id format",
			},
		})
		return
	}

	run, err := h.runRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RUN_NOT_FOUND",
					"message": "Run not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RUN_LOOKUP_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    run,
	})
}

// ListRuns handles GET /api/runs?org_id=...
func (h *RunHandler) ListRuns(c *gin.Context) {
	orgID, err := uuid.Parse(c.Query("org_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ORG_ID",
				"message": "org_id query parameter is required and must be a UUID",
			},
		})
		return
	}

	runs, err := h.runRepo.ListByOrgID(c.Request.Context(), orgID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RUN_LOOKUP_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    runs,
	})
}

// ListHitl handles GET /api/hitl
func (h *RunHandler) ListHitl(c *gin.Context) {
	entries, err := h.sideRepo.ListOpenHitl(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "HITL_LOOKUP_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entries,
	})
}
