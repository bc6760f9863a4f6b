package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskforge-dev/taskforge/db"
	"github.com/taskforge-dev/taskforge/internal/authz"
	"github.com/taskforge-dev/taskforge/internal/models"
	"github.com/taskforge-dev/taskforge/internal/types"
	"github.com/taskforge-dev/taskforge/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Sortable columns for task listings. Anything else falls back to the
// default ordering.
var taskSortFields = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"due_date":   "due_date",
	"priority":   "priority",
	"status":     "status",
	"title":      "title",
}

type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	AssignedTo  *uint      `json:"assigned_to"`
	TeamID      *uint      `json:"team_id"`
	Tags        []string   `json:"tags"`
}

// UpdateTaskRequest uses pointers so absent fields are left untouched.
// Only the fields listed here can be changed; created_by, id and the
// timestamps are out of reach.
type UpdateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	AssignedTo  *uint      `json:"assigned_to"`
	TeamID      *uint      `json:"team_id"`
	Tags        []string   `json:"tags"`
}

type TaskResponse struct {
	ID          uint                 `json:"id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Status      string               `json:"status"`
	Priority    string               `json:"priority"`
	DueDate     *time.Time           `json:"due_date"`
	CreatedBy   uint                 `json:"created_by"`
	AssignedTo  *uint                `json:"assigned_to"`
	TeamID      *uint                `json:"team_id"`
	Tags        []string             `json:"tags"`
	CompletedAt *time.Time           `json:"completed_at"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	Comments    []CommentResponse    `json:"comments,omitempty"`
	Attachments []AttachmentResponse `json:"attachments,omitempty"`
}

func taskTags(task models.Task) []string {
	if len(task.Tags) == 0 {
		return []string{}
	}

	var tags []string

	if err := json.Unmarshal(task.Tags, &tags); err != nil {
		return []string{}
	}

	return tags
}

func taskResponse(task models.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		DueDate:     task.DueDate,
		CreatedBy:   task.CreatedByID,
		AssignedTo:  task.AssignedTo,
		TeamID:      task.TeamID,
		Tags:        taskTags(task),
		CompletedAt: task.CompletedAt,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

func marshalTags(tags []string) (datatypes.JSON, error) {
	if tags == nil {
		tags = []string{}
	}

	raw, err := json.Marshal(tags)

	if err != nil {
		return nil, err
	}

	return datatypes.JSON(raw), nil
}

// checkTaskReferences verifies that an assignee or team referenced by a
// create/update request actually exists.
func checkTaskReferences(ctx *gin.Context, assignedTo, teamID *uint) bool {
	if assignedTo != nil {
		var user models.User

		if err := db.DB.First(&user, *assignedTo).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				ctx.JSON(http.StatusNotFound, types.Error("Assigned user not found"))
			} else {
				log.Printf("Failed to fetch assigned user: %v", err)
				ctx.JSON(http.StatusInternalServerError, types.Error("Internal server error"))
			}
			return false
		}
	}

	if teamID != nil {
		var team models.Team

		if err := db.DB.First(&team, *teamID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				ctx.JSON(http.StatusNotFound, types.Error("Team not found"))
			} else {
				log.Printf("Failed to fetch team: %v", err)
				ctx.JSON(http.StatusInternalServerError, types.Error("Internal server error"))
			}
			return false
		}
	}

	return true
}

func CreateTask(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, types.Error("User not authenticated"))
		return
	}

	var req CreateTaskRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error("Task title is required"))
		return
	}

	if req.Status == "" {
		req.Status = types.StatusOpen
	}

	if req.Priority == "" {
		req.Priority = types.PriorityMedium
	}

	if !types.ValidStatus(req.Status) {
		ctx.JSON(http.StatusBadRequest, types.Error("Invalid task status"))
		return
	}

	if !types.ValidPriority(req.Priority) {
		ctx.JSON(http.StatusBadRequest, types.Error("Invalid task priority"))
		return
	}

	if !checkTaskReferences(ctx, req.AssignedTo, req.TeamID) {
		return
	}

	tags, err := marshalTags(req.Tags)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error("Invalid tags"))
		return
	}

	task := models.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		CreatedByID: currentUser.ID,
		AssignedTo:  req.AssignedTo,
		TeamID:      req.TeamID,
		Tags:        tags,
	}

	if err := db.DB.Create(&task).Error; err != nil {
		log.Printf("Failed to create task: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to create task"))
		return
	}

	ctx.JSON(http.StatusCreated, types.Success(taskResponse(task)))
}

// parsePagination reads page/limit query params, coercing anything below 1
// up to 1 rather than erroring.
func parsePagination(ctx *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))

	if page < 1 {
		page = 1
	}

	if limit < 1 {
		limit = 1
	}

	if limit > maxPageSize {
		limit = maxPageSize
	}

	return page, limit
}

// buildTaskQuery applies the conjunctive filters and free-text search from
// the request's query string.
func buildTaskQuery(ctx *gin.Context) *gorm.DB {
	query := db.DB.Model(&models.Task{})

	if status := ctx.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	if priority := ctx.Query("priority"); priority != "" {
		query = query.Where("priority = ?", priority)
	}

	if assignedTo := ctx.Query("assigned_to"); assignedTo != "" {
		query = query.Where("assigned_to = ?", assignedTo)
	}

	if createdBy := ctx.Query("created_by"); createdBy != "" {
		query = query.Where("created_by_id = ?", createdBy)
	}

	if teamID := ctx.Query("team"); teamID != "" {
		query = query.Where("team_id = ?", teamID)
	}

	if search := strings.TrimSpace(ctx.Query("search")); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	return query
}

func taskOrderClause(ctx *gin.Context) string {
	column, ok := taskSortFields[ctx.Query("sort_by")]

	if !ok {
		column = "created_at"
	}

	direction := "DESC"

	switch strings.ToLower(ctx.Query("order")) {
	case "asc":
		direction = "ASC"
	case "desc", "":
	}

	return column + " " + direction
}

func listTasks(ctx *gin.Context, query *gorm.DB) {
	page, limit := parsePagination(ctx)

	var total int64

	if err := query.Count(&total).Error; err != nil {
		log.Printf("Failed to count tasks: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve tasks"))
		return
	}

	var tasks []models.Task

	err := query.
		Order(taskOrderClause(ctx)).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&tasks).Error

	if err != nil {
		log.Printf("Failed to list tasks: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve tasks"))
		return
	}

	response := make([]TaskResponse, 0, len(tasks))

	for _, task := range tasks {
		response = append(response, taskResponse(task))
	}

	pages := int(math.Ceil(float64(total) / float64(limit)))

	ctx.JSON(http.StatusOK, types.Paginated(response, len(response), total, page, pages))
}

func ListTasks(ctx *gin.Context) {
	if _, err := utils.GetCurrentUser(ctx); err != nil {
		ctx.JSON(http.StatusUnauthorized, types.Error("User not authenticated"))
		return
	}

	listTasks(ctx, buildTaskQuery(ctx))
}

func ListMyTasks(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, types.Error("User not authenticated"))
		return
	}

	query := db.DB.Model(&models.Task{}).Where("assigned_to = ?", currentUser.ID)

	if status := ctx.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	listTasks(ctx, query)
}

func GetTask(ctx *gin.Context) {
	taskID, err := utils.ParamID(ctx, "id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error(err.Error()))
		return
	}

	var task models.Task

	err = db.DB.
		Preload("Comments", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC") }).
		Preload("Comments.Author").
		Preload("Attachments").
		Preload("Attachments.Uploader").
		First(&task, taskID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, types.Error("Task not found"))
		} else {
			log.Printf("Failed to fetch task: %v", err)
			ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve task"))
		}
		return
	}

	response := taskResponse(task)

	response.Comments = make([]CommentResponse, 0, len(task.Comments))
	for _, comment := range task.Comments {
		response.Comments = append(response.Comments, commentResponse(comment))
	}

	response.Attachments = make([]AttachmentResponse, 0, len(task.Attachments))
	for _, attachment := range task.Attachments {
		response.Attachments = append(response.Attachments, attachmentResponse(attachment))
	}

	ctx.JSON(http.StatusOK, types.Success(response))
}

func UpdateTask(ctx *gin.Context) {
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

	var req UpdateTaskRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, types.Error("Invalid request"))
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

	if !authz.CanUpdateTask(currentUser, task) {
		ctx.JSON(http.StatusForbidden, types.Error("You do not have permission to update this task"))
		return
	}

	if req.Status != nil && !types.ValidStatus(*req.Status) {
		ctx.JSON(http.StatusBadRequest, types.Error("Invalid task status"))
		return
	}

	if req.Priority != nil && !types.ValidPriority(*req.Priority) {
		ctx.JSON(http.StatusBadRequest, types.Error("Invalid task priority"))
		return
	}

	if !checkTaskReferences(ctx, req.AssignedTo, req.TeamID) {
		return
	}

	updates := make(map[string]interface{})

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			ctx.JSON(http.StatusBadRequest, types.Error("Task title cannot be empty"))
			return
		}
		updates["title"] = *req.Title
	}

	if req.Description != nil {
		updates["description"] = *req.Description
	}

	if req.Status != nil {
		updates["status"] = *req.Status

		// First transition to completed stamps completed_at; later
		// transitions leave the original stamp alone.
		if *req.Status == types.StatusCompleted && task.CompletedAt == nil {
			now := time.Now()
			updates["completed_at"] = &now
		}
	}

	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}

	if req.DueDate != nil {
		updates["due_date"] = req.DueDate
	}

	if req.AssignedTo != nil {
		updates["assigned_to"] = req.AssignedTo
	}

	if req.TeamID != nil {
		updates["team_id"] = req.TeamID
	}

	if req.Tags != nil {
		tags, err := marshalTags(req.Tags)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, types.Error("Invalid tags"))
			return
		}
		updates["tags"] = tags
	}

	if len(updates) == 0 {
		ctx.JSON(http.StatusBadRequest, types.Error("No valid fields to update"))
		return
	}

	if err := db.DB.Model(&task).Updates(updates).Error; err != nil {
		log.Printf("Failed to update task: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to update task"))
		return
	}

	if err := db.DB.First(&task, task.ID).Error; err != nil {
		log.Printf("Failed to refresh task: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve task"))
		return
	}

	ctx.JSON(http.StatusOK, types.Success(taskResponse(task)))
}

// CompleteTask marks a task completed. Calling it twice is harmless:
// completed_at keeps the value from the first call.
func CompleteTask(ctx *gin.Context) {
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

	if !authz.CanUpdateTask(currentUser, task) {
		ctx.JSON(http.StatusForbidden, types.Error("You do not have permission to complete this task"))
		return
	}

	if task.Status != types.StatusCompleted || task.CompletedAt == nil {
		updates := map[string]interface{}{"status": types.StatusCompleted}

		if task.CompletedAt == nil {
			now := time.Now()
			updates["completed_at"] = &now
		}

		if err := db.DB.Model(&task).Updates(updates).Error; err != nil {
			log.Printf("Failed to complete task: %v", err)
			ctx.JSON(http.StatusInternalServerError, types.Error("Failed to complete task"))
			return
		}

		if err := db.DB.First(&task, task.ID).Error; err != nil {
			log.Printf("Failed to refresh task: %v", err)
			ctx.JSON(http.StatusInternalServerError, types.Error("Failed to retrieve task"))
			return
		}
	}

	ctx.JSON(http.StatusOK, types.Success(taskResponse(task)))
}

func DeleteTask(ctx *gin.Context) {
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

	if !authz.CanDeleteTask(currentUser, task) {
		ctx.JSON(http.StatusForbidden, types.Error("You do not have permission to delete this task"))
		return
	}

	if err := db.DB.Delete(&task).Error; err != nil {
		log.Printf("Failed to delete task: %v", err)
		ctx.JSON(http.StatusInternalServerError, types.Error("Failed to delete task"))
		return
	}

	ctx.JSON(http.StatusOK, types.SuccessMessage("Task deleted successfully"))
}
