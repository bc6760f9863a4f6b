package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCreateTaskDefaults(t *testing.T) {
	r := setupTest(t)
	userID, token := registerUser(t, r, "Alice", "alice@example.com")

	w := doJSON(t, r, http.MethodPost, "/api/tasks", gin.H{"title": "Write report"}, token)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var task struct {
		Title       string   `json:"title"`
		Status      string   `json:"status"`
		Priority    string   `json:"priority"`
		CreatedBy   uint     `json:"created_by"`
		Tags        []string `json:"tags"`
		CompletedAt *string  `json:"completed_at"`
	}

	decodeData(t, decodeEnvelope(t, w), &task)

	if task.Status != "open" {
		t.Errorf("expected default status open, got %q", task.Status)
	}

	if task.Priority != "medium" {
		t.Errorf("expected default priority medium, got %q", task.Priority)
	}

	if task.CreatedBy != userID {
		t.Errorf("expected created_by %d, got %d", userID, task.CreatedBy)
	}

	if task.CompletedAt != nil {
		t.Error("expected completed_at to be null on creation")
	}
}

func TestCreateTaskValidation(t *testing.T) {
	r := setupTest(t)
	_, token := registerUser(t, r, "Alice", "alice@example.com")

	if w := doJSON(t, r, http.MethodPost, "/api/tasks", gin.H{"description": "no title"}, token); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without title, got %d", w.Code)
	}

	if w := doJSON(t, r, http.MethodPost, "/api/tasks", gin.H{"title": "x", "status": "bogus"}, token); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad status, got %d", w.Code)
	}

	if w := doJSON(t, r, http.MethodPost, "/api/tasks", gin.H{"title": "x", "priority": "bogus"}, token); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad priority, got %d", w.Code)
	}

	if w := doJSON(t, r, http.MethodPost, "/api/tasks", gin.H{"title": "x", "assigned_to": 9999}, token); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown assignee, got %d", w.Code)
	}

	if w := doJSON(t, r, http.MethodPost, "/api/tasks", gin.H{"title": "x", "team_id": 9999}, token); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown team, got %d", w.Code)
	}
}

func TestListTasksPagination(t *testing.T) {
	r := setupTest(t)
	_, token := registerUser(t, r, "Alice", "alice@example.com")

	for i := 0; i < 25; i++ {
		createTask(t, r, token, gin.H{"title": fmt.Sprintf("Task %02d", i)})
	}

	w := doJSON(t, r, http.MethodGet, "/api/tasks?page=2&limit=10", nil, token)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	env := decodeEnvelope(t, w)

	var tasks []struct {
		ID uint `json:"id"`
	}

	decodeData(t, env, &tasks)

	if len(tasks) > 10 {
		t.Errorf("expected at most 10 items, got %d", len(tasks))
	}

	if env.Total == nil || *env.Total != 25 {
		t.Errorf("expected total 25, got %v", env.Total)
	}

	if env.Pages == nil || *env.Pages != 3 {
		t.Errorf("expected 3 pages, got %v", env.Pages)
	}

	if env.Page == nil || *env.Page != 2 {
		t.Errorf("expected page 2, got %v", env.Page)
	}

	if env.Count == nil || *env.Count != len(tasks) {
		t.Errorf("expected count %d, got %v", len(tasks), env.Count)
	}
}

func TestListTasksCoercesBadPagination(t *testing.T) {
	r := setupTest(t)
	_, token := registerUser(t, r, "Alice", "alice@example.com")

	createTask(t, r, token, gin.H{"title": "Only task"})

	for _, query := range []string{"page=0", "page=-3", "limit=0", "limit=-1", "page=0&limit=0"} {
		w := doJSON(t, r, http.MethodGet, "/api/tasks?"+query, nil, token)

		if w.Code != http.StatusOK {
			t.Errorf("query %q: expected 200, got %d", query, w.Code)
			continue
		}

		env := decodeEnvelope(t, w)

		if env.Page == nil || *env.Page < 1 {
			t.Errorf("query %q: expected page coerced to >= 1, got %v", query, env.Page)
		}
	}
}

func TestListTasksFiltersAndSearch(t *testing.T) {
	r := setupTest(t)
	aliceID, aliceToken := registerUser(t, r, "Alice", "alice@example.com")
	_, bobToken := registerUser(t, r, "Bob", "bob@example.com")

	createTask(t, r, aliceToken, gin.H{"title": "Deploy backend", "priority": "high", "assigned_to": aliceID})
	createTask(t, r, aliceToken, gin.H{"title": "Write docs", "description": "deployment runbook"})
	createTask(t, r, bobToken, gin.H{"title": "Fix login bug", "status": "in-progress"})

	check := func(query string, want int) {
		t.Helper()

		w := doJSON(t, r, http.MethodGet, "/api/tasks?"+query, nil, aliceToken)

		if w.Code != http.StatusOK {
			t.Fatalf("query %q: expected 200, got %d", query, w.Code)
		}

		var tasks []struct {
			ID uint `json:"id"`
		}

		decodeData(t, decodeEnvelope(t, w), &tasks)

		if len(tasks) != want {
			t.Errorf("query %q: expected %d tasks, got %d", query, want, len(tasks))
		}
	}

	check("priority=high", 1)
	check("status=in-progress", 1)
	check(fmt.Sprintf("assigned_to=%d", aliceID), 1)
	check(fmt.Sprintf("created_by=%d", aliceID), 2)

	// Case-insensitive containment over title and description.
	check("search=DEPLOY", 2)
	check("search=runbook", 1)
	check("search=nomatch", 0)
}

func TestListMyTasks(t *testing.T) {
	r := setupTest(t)
	aliceID, aliceToken := registerUser(t, r, "Alice", "alice@example.com")
	_, bobToken := registerUser(t, r, "Bob", "bob@example.com")

	createTask(t, r, bobToken, gin.H{"title": "Assigned to Alice", "assigned_to": aliceID})
	createTask(t, r, bobToken, gin.H{"title": "Assigned to Alice, done", "assigned_to": aliceID, "status": "completed"})
	createTask(t, r, bobToken, gin.H{"title": "Unassigned"})

	w := doJSON(t, r, http.MethodGet, "/api/tasks/my-tasks", nil, aliceToken)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	env := decodeEnvelope(t, w)

	if env.Total == nil || *env.Total != 2 {
		t.Errorf("expected 2 assigned tasks, got %v", env.Total)
	}

	w = doJSON(t, r, http.MethodGet, "/api/tasks/my-tasks?status=completed", nil, aliceToken)
	env = decodeEnvelope(t, w)

	if env.Total == nil || *env.Total != 1 {
		t.Errorf("expected 1 completed assigned task, got %v", env.Total)
	}
}

func TestUpdateTaskAuthorization(t *testing.T) {
	r := setupTest(t)
	assigneeID, assigneeToken := registerUser(t, r, "Assignee", "assignee@example.com")
	_, creatorToken := registerUser(t, r, "Creator", "creator@example.com")
	_, strangerToken := registerUser(t, r, "Stranger", "stranger@example.com")
	_, adminToken := registerAdmin(t, r, "admin@example.com")

	taskID := createTask(t, r, creatorToken, gin.H{"title": "Guarded", "assigned_to": assigneeID})
	taskPath := fmt.Sprintf("/api/tasks/%d", taskID)

	if w := doJSON(t, r, http.MethodPut, taskPath, gin.H{"title": "Hacked"}, strangerToken); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for stranger update, got %d", w.Code)
	}

	if w := doJSON(t, r, http.MethodPut, taskPath, gin.H{"description": "updated by assignee"}, assigneeToken); w.Code != http.StatusOK {
		t.Errorf("expected 200 for assignee update, got %d", w.Code)
	}

	if w := doJSON(t, r, http.MethodPut, taskPath, gin.H{"priority": "urgent"}, creatorToken); w.Code != http.StatusOK {
		t.Errorf("expected 200 for creator update, got %d", w.Code)
	}

	if w := doJSON(t, r, http.MethodPut, taskPath, gin.H{"priority": "low"}, adminToken); w.Code != http.StatusOK {
		t.Errorf("expected 200 for admin update, got %d", w.Code)
	}
}

func TestDeleteTaskExcludesAssignee(t *testing.T) {
	r := setupTest(t)
	assigneeID, assigneeToken := registerUser(t, r, "Assignee", "assignee@example.com")
	_, creatorToken := registerUser(t, r, "Creator", "creator@example.com")
	_, strangerToken := registerUser(t, r, "Stranger", "stranger@example.com")

	taskID := createTask(t, r, creatorToken, gin.H{"title": "Guarded", "assigned_to": assigneeID})
	taskPath := fmt.Sprintf("/api/tasks/%d", taskID)

	// Delete is narrower than update: the assignee may not delete.
	if w := doJSON(t, r, http.MethodDelete, taskPath, nil, assigneeToken); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for assignee delete, got %d", w.Code)
	}

	if w := doJSON(t, r, http.MethodDelete, taskPath, nil, strangerToken); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for stranger delete, got %d", w.Code)
	}

	if w := doJSON(t, r, http.MethodDelete, taskPath, nil, creatorToken); w.Code != http.StatusOK {
		t.Errorf("expected 200 for creator delete, got %d", w.Code)
	}

	if w := doJSON(t, r, http.MethodGet, taskPath, nil, creatorToken); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}

func TestCompleteTaskIsIdempotent(t *testing.T) {
	r := setupTest(t)
	_, token := registerUser(t, r, "Alice", "alice@example.com")

	taskID := createTask(t, r, token, nil)
	completePath := fmt.Sprintf("/api/tasks/%d/complete", taskID)

	w := doJSON(t, r, http.MethodPut, completePath, nil, token)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var first struct {
		Status      string  `json:"status"`
		CompletedAt *string `json:"completed_at"`
	}

	decodeData(t, decodeEnvelope(t, w), &first)

	if first.Status != "completed" {
		t.Errorf("expected status completed, got %q", first.Status)
	}

	if first.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}

	w = doJSON(t, r, http.MethodPut, completePath, nil, token)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on second complete, got %d", w.Code)
	}

	var second struct {
		CompletedAt *string `json:"completed_at"`
	}

	decodeData(t, decodeEnvelope(t, w), &second)

	if second.CompletedAt == nil || *second.CompletedAt != *first.CompletedAt {
		t.Errorf("expected completed_at to keep its first value: first %v, second %v", *first.CompletedAt, second.CompletedAt)
	}
}

func TestUpdateTaskCompletionStampsOnce(t *testing.T) {
	r := setupTest(t)
	_, token := registerUser(t, r, "Alice", "alice@example.com")

	taskID := createTask(t, r, token, nil)
	taskPath := fmt.Sprintf("/api/tasks/%d", taskID)

	w := doJSON(t, r, http.MethodPut, taskPath, gin.H{"status": "completed"}, token)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var first struct {
		CompletedAt *string `json:"completed_at"`
	}

	decodeData(t, decodeEnvelope(t, w), &first)

	if first.CompletedAt == nil {
		t.Fatal("expected completed_at after status update to completed")
	}

	// Reopen, then complete again: the stamp stays from the first completion.
	if w := doJSON(t, r, http.MethodPut, taskPath, gin.H{"status": "open"}, token); w.Code != http.StatusOK {
		t.Fatalf("failed to reopen: %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPut, taskPath, gin.H{"status": "completed"}, token)

	var second struct {
		CompletedAt *string `json:"completed_at"`
	}

	decodeData(t, decodeEnvelope(t, w), &second)

	if second.CompletedAt == nil || *second.CompletedAt != *first.CompletedAt {
		t.Errorf("expected completed_at unchanged on re-completion: first %v, second %v", *first.CompletedAt, second.CompletedAt)
	}
}

func TestGetTaskIncludesSubEntities(t *testing.T) {
	r := setupTest(t)
	_, token := registerUser(t, r, "Alice", "alice@example.com")

	taskID := createTask(t, r, token, nil)

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/tasks/%d/comments", taskID), gin.H{"content": "first"}, token)

	if w.Code != http.StatusCreated {
		t.Fatalf("failed to add comment: %d", w.Code)
	}

	if w := uploadFile(t, r, token, taskID, "notes.txt", "text/plain", []byte("hello")); w.Code != http.StatusCreated {
		t.Fatalf("failed to upload attachment: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/tasks/%d", taskID), nil, token)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var task struct {
		Comments []struct {
			Content string `json:"content"`
			Author  struct {
				Email string `json:"email"`
			} `json:"author"`
		} `json:"comments"`
		Attachments []struct {
			OriginalName string `json:"original_name"`
			Uploader     struct {
				Email string `json:"email"`
			} `json:"uploader"`
		} `json:"attachments"`
	}

	decodeData(t, decodeEnvelope(t, w), &task)

	if len(task.Comments) != 1 || task.Comments[0].Author.Email != "alice@example.com" {
		t.Errorf("expected nested comment with author identity, got %+v", task.Comments)
	}

	if len(task.Attachments) != 1 || task.Attachments[0].Uploader.Email != "alice@example.com" {
		t.Errorf("expected nested attachment with uploader identity, got %+v", task.Attachments)
	}
}
