package main

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/fxcard_backend/cardsync"
	"bitbucket.org/mmdatafocus/fxcard_backend/models"
	"bitbucket.org/mmdatafocus/fxcard_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func requireSession(c *gin.Context) bool {
	if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}
	return true
}

func requireReviewerRole(c *gin.Context) (models.ReviewerRole, bool) {
	roleStr, ok := utils.GetUserRoleFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	reviewerRole, err := models.UserRole(roleStr).ReviewerRole()
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "reviewer role required"})
		return "", false
	}
	return reviewerRole, true
}

func requireAdmin(c *gin.Context) bool {
	isAdmin, ok := utils.GetIsAdminFromContext(c.Request.Context())
	if !ok || !isAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return false
	}
	return true
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func registerApplicationRoutes(r *gin.Engine) {
	r.GET("/applications", listApplicationsHandler())
	r.GET("/applications/:id", getApplicationHandler())
	r.PUT("/applications/:id/review-fields", updateReviewFieldsHandler())
	r.POST("/applications/:id/decision", applicationDecisionHandler())
	r.POST("/applications/:id/reopen", reopenApplicationHandler())
	r.GET("/applications/:id/comments", listCommentsHandler())
	r.POST("/applications/:id/comments", createCommentHandler())
	r.GET("/profile", getProfileHandler())
	r.PUT("/profile", upsertProfileHandler())
}

func listApplicationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}

		var filter models.ApplicationFilter
		if v := c.Query("status"); v != "" {
			status := models.ApplicationStatus(v)
			if !status.IsValid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			filter.Status = &status
		}
		if v := c.Query("application_number"); v != "" {
			filter.ApplicationNumber = &v
		}
		if v := c.Query("pan_number"); v != "" {
			filter.PanNumber = &v
		}
		if v := c.Query("arn"); v != "" {
			filter.Arn = &v
		}
		if v := c.Query("customer_name"); v != "" {
			filter.CustomerName = &v
		}
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}
		if v := c.Query("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Offset = n
			}
		}

		apps, total, err := models.GetApplications(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": apps, "total": total})
	}
}

func getApplicationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		app, err := models.GetApplication(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, app)
	}
}

type reviewFieldsRequest struct {
	ItrFlag           string `json:"itr_flag"`
	LrsAmountConsumed string `json:"lrs_amount_consumed" validate:"required"`
}

func updateReviewFieldsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		if _, ok := requireReviewerRole(c); !ok {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}

		var req reviewFieldsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := validate.Struct(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		itr, ok := models.ParseItrFlag(req.ItrFlag)
		if req.ItrFlag != "" && !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "itr_flag must be Y or N"})
			return
		}
		lrs, err := utils.ParseDecimal(req.LrsAmountConsumed)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lrs_amount_consumed must be numeric"})
			return
		}

		app, err := models.UpdateReviewFields(c.Request.Context(), id, itr, &lrs)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, app)
	}
}

type decisionRequest struct {
	Decision string `json:"decision" binding:"required"`
	Remarks  string `json:"remarks"`
}

func applicationDecisionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		role, ok := requireReviewerRole(c)
		if !ok {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}

		var req decisionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		var approve bool
		switch req.Decision {
		case "approve":
			approve = true
		case "reject":
			approve = false
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "decision must be approve or reject"})
			return
		}

		ctx := c.Request.Context()
		var result *models.DecisionResult
		var err error
		if role == models.ReviewerRoleMaker {
			result, err = models.MakerDecision(ctx, id, approve)
		} else {
			result, err = models.CheckerDecision(ctx, id, approve)
		}
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}

		if req.Remarks != "" {
			if _, err := models.CreateComment(ctx, id, &models.NewComment{Description: req.Remarks}); err != nil {
				c.JSON(http.StatusOK, gin.H{"data": result.Application, "warning": "decision saved but remark failed: " + err.Error()})
				return
			}
		}

		// Final approval pushes the record downstream; the decision has
		// already committed, so delivery is best effort.
		if role == models.ReviewerRoleChecker && approve {
			app := result.Application
			go cardsync.NotifyStatusChange(cardsync.StatusChange{
				ApplicationNumber: app.ApplicationNumber,
				KitNo:             app.KitNo,
				LrsValue:          app.LrsAmountConsumed.StringFixed(2),
				ItrFlag:           models.ItrFlagString(app.ItrFlag),
				OldStatus:         string(result.OldStatus),
				NewStatus:         string(app.Status),
			})
		}

		c.JSON(http.StatusOK, result.Application)
	}
}

func reopenApplicationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		if _, ok := requireReviewerRole(c); !ok {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}

		app, err := models.ReopenApplication(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, app)
	}
}

func listCommentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		comments, err := models.GetComments(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": comments})
	}
}

func createCommentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewComment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		comment, err := models.CreateComment(c.Request.Context(), id, &input)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, comment)
	}
}

func getProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		profile, err := models.GetProfile(c.Request.Context())
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

func upsertProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		var input models.NewProfile
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		profile, err := models.UpsertProfile(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}
