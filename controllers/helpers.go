package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"research-showcase-api/config"
	"research-showcase-api/middleware"
	"research-showcase-api/services"
	"research-showcase-api/utils"
)

// Dependencies are the services the handlers use.
type Dependencies struct {
	Workflow  *services.WorkflowService
	Search    *services.SearchService
	Accounts  *services.AccountService
	Inbox     *services.InboxService
	Uploads   *services.UploadService
	JWTSecret string
	TokenTTL  time.Duration
}

var deps Dependencies

// Configure installs the services used by every handler. Call before serving.
func Configure(d Dependencies) {
	if d.TokenTTL <= 0 {
		d.TokenTTL = 24 * time.Hour
	}
	deps = d
}

var statusByCode = map[utils.Code]int{
	utils.CodeInvalid:      http.StatusBadRequest,
	utils.CodeUnauthorized: http.StatusUnauthorized,
	utils.CodeForbidden:    http.StatusForbidden,
	utils.CodeNotFound:     http.StatusNotFound,
	utils.CodeConflict:     http.StatusConflict,
	utils.CodePersistence:  http.StatusInternalServerError,
	utils.CodeInternal:     http.StatusInternalServerError,
}

// HTTPStatus maps an error to the status code returned to clients.
func HTTPStatus(err error) int {
	if status, ok := statusByCode[utils.ErrorCode(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes err in the standard error envelope. Causes of server
// errors are logged, never returned.
func respondError(c *gin.Context, err error) {
	status := HTTPStatus(err)
	body := gin.H{"code": utils.ErrorCode(err), "message": "Internal server error"}

	var ae *utils.AppError
	if errors.As(err, &ae) {
		if ae.Message != "" {
			body["message"] = ae.Message
		}
		if len(ae.Fields) > 0 {
			body["fields"] = ae.Fields
		}
	}
	if status >= http.StatusInternalServerError {
		config.L().Error("request failed",
			zap.String("id", middleware.GetRequestID(c)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"success": false, "error": body})
}

func respondBadRequest(c *gin.Context, message string) {
	respondError(c, utils.NewError(utils.CodeInvalid, message))
}

// currentActor returns the authenticated actor or writes a 401.
func currentActor(c *gin.Context) (services.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, utils.NewError(utils.CodeUnauthorized, "Authentication required"))
		return services.Actor{}, false
	}
	return actor, true
}

func parseIntOrDefault(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && b
}
