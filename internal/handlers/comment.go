package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskforge-dev/taskforge/db"
	"github.com/taskforge-dev/taskforge/internal/authz"
	"github.com/taskforge-dev/taskforge/internal/models"
	"github.com/taskforge-dev/taskforge/internal/types"
	"github.com/taskforge-dev/taskforge/internal/utils"
	"gorm.io/gorm"
)

type CreateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

type UpdateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

type CommentResponse struct {
	ID        uint               `json:"id"`
	TaskID    uint               `json:"task_id"`
	Content   string             `json:"content"`
	Author    types.UserResponse `json:"author"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func commentResponse(comment models.Comment) CommentResponse {
	return CommentResponse{
		ID:      comment.ID,
		TaskID:  comment.TaskID,
		Content: comment.Content,
		Author: types.UserResponse{
			ID:    comment.Author.ID,
			Name:  comment.Author.Name,
			Email: comment.Author.Email,
			Role:  comment.Author.Role,
		},
		CreatedAt: comment.CreatedAt,
		UpdatedAt: comment.UpdatedAt,
	}
}

func CreateComment(ctx *gin.Context) {
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

	var req CreateCommentRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error("Comment content is required"))
		return
	}

	content := strings.TrimSpace(req.Content)

	if content == "" {
		ctx.JSON(http.StatusBadRequest, types.Error("Comment content cannot be empty"))
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

	comment := models.Comment{
		TaskID:   task.ID,
		AuthorID: currentUser.ID,
		Content:  content,
	}

	if err := db.DB.Create(&comment).Error; err != nil {
		log.Printf("Failed to create comment: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to create comment"))
		return
	}

	if err := db.DB.Preload("Author").First(&comment, comment.ID).Error; err != nil {
		log.Printf("Failed to refresh comment: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve comment"))
		return
	}

	ctx.JSON(http.StatusCreated, types.Success(commentResponse(comment)))
}

func ListComments(ctx *gin.Context) {
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

	var comments []models.Comment

	err = db.DB.
		Preload("Author").
		Where("task_id = ?", task.ID).
		Order("created_at ASC").
		Find(&comments).Error

	if err != nil {
		log.Printf("Failed to list comments: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve comments"))
		return
	}

	response := make([]CommentResponse, 0, len(comments))

	for _, comment := range comments {
		response = append(response, commentResponse(comment))
	}

	ctx.JSON(http.StatusOK, types.Success(response))
}

func UpdateComment(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, types.Error("User not authenticated"))
		return
	}

	commentID, err := utils.ParamID(ctx, "id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error(err.Error()))
		return
	}

	var req UpdateCommentRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error("Comment content is required"))
		return
	}

	content := strings.TrimSpace(req.Content)

	if content == "" {
		ctx.JSON(http.StatusBadRequest, types.Error("Comment content cannot be empty"))
		return
	}

	var comment models.Comment

	if err := db.DB.First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, types.Error("Comment not found"))
		} else {
			log.Printf("Failed to fetch comment: %v", err)
			ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve comment"))
		}
		return
	}

	if !authz.CanModifyComment(currentUser, comment) {
		ctx.JSON(http.StatusForbidden, types.Error("You do not have permission to update this comment"))
		return
	}

	if err := db.DB.Model(&comment).Update("content", content).Error; err != nil {
		log.Printf("Failed to update comment: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to update comment"))
		return
	}

	if err := db.DB.Preload("Author").First(&comment, comment.ID).Error; err != nil {
		log.Printf("Failed to refresh comment: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve comment"))
		return
	}

	ctx.JSON(http.StatusOK, types.Success(commentResponse(comment)))
}

func DeleteComment(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, types.Error("User not authenticated"))
		return
	}

	commentID, err := utils.ParamID(ctx, "id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error(err.Error()))
		return
	}

	var comment models.Comment

	if err := db.DB.First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, types.Error("Comment not found"))
		} else {
			log.Printf("Failed to fetch comment: %v", err)
			ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve comment"))
		}
		return
	}

	if !authz.CanModifyComment(currentUser, comment) {
		ctx.JSON(http.StatusForbidden, types.Error("You do not have permission to delete this comment"))
		return
	}

	if err := db.DB.Delete(&comment).Error; err != nil {
		log.Printf("Failed to delete comment: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to delete comment"))
		return
	}

	ctx.JSON(http.StatusOK, types.SuccessMessage("Comment deleted successfully"))
}
