package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"research-showcase-api/models"
	"research-showcase-api/services"
	"research-showcase-api/utils"
)

type ReviewRequest struct {
	Reason   string `json:"reason" form:"reason"`
	Feedback string `json:"feedback" form:"feedback"`
}

// GetReviewQueue lists pending and needs_revision projects for administrators.
// ?status= narrows the list to one state and accepts aliases such as "published".
// GET /api/v1/admin/review
func GetReviewQueue(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var statuses []models.ApprovalStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := utils.ParseApprovalStatus(raw)
		if err != nil {
			respondError(c, utils.ErrValidation("status", err.Error()))
			return
		}
		statuses = append(statuses, status)
	}
	rows, err := deps.Workflow.ReviewQueue(c.Request.Context(), actor, statuses...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": presentProjects(rows, true), "total": len(rows)})
}

// ApproveSubmission publishes a project.
// POST /api/v1/admin/submissions/:id/approve
func ApproveSubmission(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	result, err := deps.Workflow.Approve(c.Request.Context(), actor, c.Param("id"))
	respondTransition(c, result, err, "Project approved successfully.")
}

// RejectSubmission closes a project with an optional reason.
// POST /api/v1/admin/submissions/:id/reject
func RejectSubmission(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req ReviewRequest
	_ = c.ShouldBind(&req)
	result, err := deps.Workflow.Reject(c.Request.Context(), actor, c.Param("id"), req.Reason)
	respondTransition(c, result, err, "Project rejected.")
}

// RequestRevision sends a project back to its author with optional feedback.
// POST /api/v1/admin/submissions/:id/request-revision
func RequestRevision(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req ReviewRequest
	_ = c.ShouldBind(&req)
	result, err := deps.Workflow.RequestRevision(c.Request.Context(), actor, c.Param("id"), req.Feedback)
	respondTransition(c, result, err, "Revision requested from author.")
}

// respondTransition reports a committed transition. Notification failures are
// returned as warnings alongside a successful status.
func respondTransition(c *gin.Context, result *services.TransitionResult, err error, message string) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  message,
		"project":  presentProject(result.Project, true),
		"warnings": result.Warnings,
	})
}
