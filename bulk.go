package main

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/fxcard_backend/config"
	"bitbucket.org/mmdatafocus/fxcard_backend/models"
	"bitbucket.org/mmdatafocus/fxcard_backend/utils"
	"bitbucket.org/mmdatafocus/fxcard_backend/workflow"
	"github.com/gin-gonic/gin"
)

// 20 MB is generous for review batches of a few thousand rows.
const maxUploadBytes = 20 << 20

func registerBulkRoutes(r *gin.Engine) {
	r.POST("/bulk/export", bulkExportHandler())
	r.POST("/bulk/upload", bulkUploadHandler())
	r.GET("/bulk/files", listBulkFilesHandler())
	r.GET("/bulk/files/:id", getBulkFileHandler())
	r.GET("/bulk/files/:id/results", bulkResultsHandler())
	r.GET("/bulk/object", bulkObjectHandler())
	r.GET("/bulk/object/signed-url", bulkSignedURLHandler())
	r.POST("/internal/ops/reconcile-replay", reconcileReplayHandler())
}

func bulkExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		if !requireAdmin(c) {
			return
		}

		result, err := workflow.ExportEligibleApplications(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func bulkUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		role, ok := requireReviewerRole(c)
		if !ok {
			return
		}

		jobId, err := strconv.Atoi(c.PostForm("bulk_file_id"))
		if err != nil || jobId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bulk_file_id is required"})
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		result, err := workflow.SubmitBulkFile(c.Request.Context(), jobId, role, fileHeader.Filename, data)
		if err != nil {
			switch {
			case errors.Is(err, utils.ErrorRecordNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			case errors.Is(err, utils.ErrUnrecognizedWorkbook):
				c.JSON(http.StatusBadRequest, gin.H{"error": "file is not a recognizable spreadsheet"})
			case errors.Is(err, workflow.ErrRoleAlreadySubmitted),
				errors.Is(err, workflow.ErrCheckerBeforeMaker),
				errors.Is(err, workflow.ErrJobAlreadyReconciled):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		if result.Validation != nil && !result.Validation.IsValid() {
			c.JSON(http.StatusUnprocessableEntity, result)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func listBulkFilesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		limit, _ := strconv.Atoi(c.Query("limit"))
		offset, _ := strconv.Atoi(c.Query("offset"))
		files, err := models.ListBulkFiles(c.Request.Context(), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": files})
	}
}

func getBulkFileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		file, err := models.GetBulkFile(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data":     file,
			"file_url": utils.BuildObjectAccessURL(file.FilePath),
		})
	}
}

func bulkResultsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		results, err := models.GetReconciliationResults(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		discrepancies, err := models.CountDiscrepancies(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data":          results,
			"total":         len(results),
			"discrepancies": discrepancies,
		})
	}
}

// bulkObjectHandler streams a stored spreadsheet back to the reviewer. The
// key is whatever file_path / validation_file_path the API returned earlier.
func bulkObjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		key := utils.ExtractObjectKeyFromURL(c.Query("key"))
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
			return
		}

		data, err := utils.ReadBytesFromGCS(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, utils.ContentTypeXlsx, data)
	}
}

// bulkSignedURLHandler hands out a short-lived signed GET URL so large
// spreadsheets download straight from the bucket.
func bulkSignedURLHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		key := utils.ExtractObjectKeyFromURL(c.Query("key"))
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
			return
		}

		exists, err := utils.ObjectExistsInGCS(c.Request.Context(), key)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
			return
		}

		signed, err := utils.SignDownload(c.Request.Context(), key, config.SignedDownloadTTL())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, signed)
	}
}

type reconcileReplayRequest struct {
	BulkFileId int `json:"bulk_file_id"`
}

// reconcileReplayHandler re-runs reconciliation for a job, used when a push
// delivery was exhausted to the DLQ. The engine is idempotent, so replaying
// a healthy job changes nothing.
func reconcileReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		if !requireAdmin(c) {
			return
		}

		var req reconcileReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.BulkFileId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bulk_file_id is required"})
			return
		}

		if err := workflow.ProcessBulkReconciliation(c.Request.Context(), req.BulkFileId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"bulk_file_id": req.BulkFileId,
			"message":      "reconciliation replayed",
		})
	}
}
