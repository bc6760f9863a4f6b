package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskforge-dev/taskforge/db"
	"github.com/taskforge-dev/taskforge/internal/authz"
	"github.com/taskforge-dev/taskforge/internal/models"
	"github.com/taskforge-dev/taskforge/internal/storage"
	"github.com/taskforge-dev/taskforge/internal/types"
	"github.com/taskforge-dev/taskforge/internal/utils"
	"gorm.io/gorm"
)

type AttachmentResponse struct {
	ID           uint               `json:"id"`
	TaskID       uint               `json:"task_id"`
	FileName     string             `json:"file_name"`
	OriginalName string             `json:"original_name"`
	MimeType     string             `json:"mime_type"`
	Size         int64              `json:"size"`
	Uploader     types.UserResponse `json:"uploader"`
	CreatedAt    time.Time          `json:"created_at"`
}

func attachmentResponse(attachment models.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:           attachment.ID,
		TaskID:       attachment.TaskID,
		FileName:     attachment.FileName,
		OriginalName: attachment.OriginalName,
		MimeType:     attachment.MimeType,
		Size:         attachment.Size,
		Uploader: types.UserResponse{
			ID:    attachment.Uploader.ID,
			Name:  attachment.Uploader.Name,
			Email: attachment.Uploader.Email,
			Role:  attachment.Uploader.Role,
		},
		CreatedAt: attachment.CreatedAt,
	}
}

// UploadAttachment accepts a multipart "file" field. Size and type are
// checked before anything touches disk or the database.
func UploadAttachment(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, types.Error("User not authenticated"))
		return
	}

	taskID, err := utils.ParamID(ctx, "id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error(err.Error()))
		return
	}

	var task models.Task

	if err := db.DB.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, types.Error("Task not found"))
		} else {
			log.Printf("Failed to fetch task: %v", err)
			ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve task"))
		}
		return
	}

	file, err := ctx.FormFile("file")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error("No file uploaded"))
		return
	}

	if file.Size > storage.MaxUploadSize {
		ctx.JSON(http.StatusBadRequest, types.Error("File exceeds the 5MB size limit"))
		return
	}

	mimeType := file.Header.Get("Content-Type")

	if !storage.Allowed(file.Filename, mimeType) {
		ctx.JSON(http.StatusBadRequest, types.Error("File type not allowed"))
		return
	}

	storedName := storage.StoredName(file.Filename)
	storagePath := storage.PathFor(storedName)

	if err := ctx.SaveUploadedFile(file, storagePath); err != nil {
		log.Printf("Failed to save uploaded file: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to store file"))
		return
	}

	attachment := models.Attachment{
		TaskID:       task.ID,
		UploaderID:   currentUser.ID,
		FileName:     storedName,
		OriginalName: file.Filename,
		MimeType:     mimeType,
		Size:         file.Size,
		StoragePath:  storagePath,
	}

	if err := db.DB.Create(&attachment).Error; err != nil {
		log.Printf("Failed to create attachment: %v", err)

		// The metadata row never existed, so the blob must not linger.
		if err := storage.Remove(storedName); err != nil {
			log.Printf("Failed to remove orphaned blob %s: %v", storedName, err)
		}

		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to create attachment"))
		return
	}

	if err := db.DB.Preload("Uploader").First(&attachment, attachment.ID).Error; err != nil {
		log.Printf("Failed to refresh attachment: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve attachment"))
		return
	}

	ctx.JSON(http.StatusCreated, types.Success(attachmentResponse(attachment)))
}

func ListAttachments(ctx *gin.Context) {
	taskID, err := utils.ParamID(ctx, "id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error(err.Error()))
		return
	}

	var task models.Task

	if err := db.DB.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, types.Error("Task not found"))
		} else {
			log.Printf("Failed to fetch task: %v", err)
			ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve task"))
		}
		return
	}

	var attachments []models.Attachment

	err = db.DB.
		Preload("Uploader").
		Where("task_id = ?", task.ID).
		Order("created_at ASC").
		Find(&attachments).Error

	if err != nil {
		log.Printf("Failed to list attachments: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve attachments"))
		return
	}

	response := make([]AttachmentResponse, 0, len(attachments))

	for _, attachment := range attachments {
		response = append(response, attachmentResponse(attachment))
	}

	ctx.JSON(http.StatusOK, types.Success(response))
}

func DownloadAttachment(ctx *gin.Context) {
	attachmentID, err := utils.ParamID(ctx, "id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error(err.Error()))
		return
	}

	var attachment models.Attachment

	if err := db.DB.First(&attachment, attachmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, types.Error("Attachment not found"))
		} else {
			log.Printf("Failed to fetch attachment: %v", err)
			ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve attachment"))
		}
		return
	}

	if !storage.Exists(attachment.FileName) {
		ctx.JSON(http.StatusNotFound, types.Error("Attachment file not found"))
		return
	}

	ctx.Header("Content-Type", attachment.MimeType)
	ctx.FileAttachment(storage.PathFor(attachment.FileName), attachment.OriginalName)
}

// DeleteAttachment removes the blob best-effort: a failed blob delete is
// logged but never blocks removing the metadata row.
func DeleteAttachment(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, types.Error("User not authenticated"))
		return
	}

	attachmentID, err := utils.ParamID(ctx, "id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error(err.Error()))
		return
	}

	var attachment models.Attachment

	if err := db.DB.First(&attachment, attachmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, types.Error("Attachment not found"))
		} else {
			log.Printf("Failed to fetch attachment: %v", err)
			ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve attachment"))
		}
		return
	}

	if !authz.CanDeleteAttachment(currentUser, attachment) {
		ctx.JSON(http.StatusForbidden, types.Error("You do not have permission to delete this attachment"))
		return
	}

	if err := storage.Remove(attachment.FileName); err != nil {
		log.Printf("Failed to remove blob %s: %v", attachment.FileName, err)
	}

	if err := db.DB.Delete(&attachment).Error; err != nil {
		log.Printf("Failed to delete attachment: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to delete attachment"))
		return
	}

	ctx.JSON(http.StatusOK, types.SuccessMessage("Attachment deleted successfully"))
}
