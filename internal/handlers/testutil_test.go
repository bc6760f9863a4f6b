package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/taskforge-dev/taskforge/db"
	"github.com/taskforge-dev/taskforge/internal/auth"
	"github.com/taskforge-dev/taskforge/internal/models"
	"github.com/taskforge-dev/taskforge/internal/router"
	"github.com/taskforge-dev/taskforge/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter atomic.Int64

// envelope mirrors types.Envelope with raw data for per-test decoding.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Count   *int            `json:"count"`
	Total   *int64          `json:"total"`
	Page    *int            `json:"page"`
	Pages   *int            `json:"pages"`
}

// setupTest wires an isolated in-memory database, a temp uploads directory
// and a full router for one test.
func setupTest(t *testing.T) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)

	os.Setenv("JWT_SECRET", "test-secret")
	if err := auth.InitJWTSecret(); err != nil {
		t.Fatalf("failed to init JWT secret: %v", err)
	}

	dsn := fmt.Sprintf("file:handlers_test_%d?mode=memory&cache=shared", testDBCounter.Add(1))

	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = gormDB.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.TeamMembership{},
		&models.Task{},
		&models.Comment{},
		&models.Attachment{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gormDB

	if err := storage.Init(t.TempDir()); err != nil {
		t.Fatalf("failed to init storage: %v", err)
	}

	return router.NewRouter()
}

// doJSON performs a JSON request, attaching a bearer token when given.
func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope

	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode envelope from %q: %v", w.Body.String(), err)
	}

	return env
}

func decodeData(t *testing.T, env envelope, out interface{}) {
	t.Helper()

	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("failed to decode envelope data %q: %v", string(env.Data), err)
	}
}

// registerUser creates an account through the API and returns its id and token.
func registerUser(t *testing.T, r *gin.Engine, name, email string) (uint, string) {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", gin.H{
		"name":     name,
		"email":    email,
		"password": "password123",
	}, "")

	if w.Code != http.StatusCreated {
		t.Fatalf("failed to register %s: status %d, body %s", email, w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID uint `json:"id"`
		} `json:"user"`
	}

	decodeData(t, decodeEnvelope(t, w), &resp)

	return resp.User.ID, resp.Token
}

// registerAdmin registers a user and promotes it to global admin directly
// in the database. The middleware re-reads the user on every request, so
// the existing token picks up the new role.
func registerAdmin(t *testing.T, r *gin.Engine, email string) (uint, string) {
	t.Helper()

	id, token := registerUser(t, r, "Admin", email)

	if err := db.DB.Model(&models.User{}).Where("id = ?", id).Update("role", "admin").Error; err != nil {
		t.Fatalf("failed to promote user to admin: %v", err)
	}

	return id, token
}

// createTask makes a minimal task through the API and returns its id.
func createTask(t *testing.T, r *gin.Engine, token string, fields gin.H) uint {
	t.Helper()

	if fields == nil {
		fields = gin.H{}
	}

	if _, ok := fields["title"]; !ok {
		fields["title"] = "Test task"
	}

	w := doJSON(t, r, http.MethodPost, "/api/tasks", fields, token)

	if w.Code != http.StatusCreated {
		t.Fatalf("failed to create task: status %d, body %s", w.Code, w.Body.String())
	}

	var task struct {
		ID uint `json:"id"`
	}

	decodeData(t, decodeEnvelope(t, w), &task)

	return task.ID
}

// createTeam makes a team through the API and returns its id.
func createTeam(t *testing.T, r *gin.Engine, token, name string) uint {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/api/teams", gin.H{"name": name}, token)

	if w.Code != http.StatusCreated {
		t.Fatalf("failed to create team: status %d, body %s", w.Code, w.Body.String())
	}

	var team struct {
		ID uint `json:"id"`
	}

	decodeData(t, decodeEnvelope(t, w), &team)

	return team.ID
}

// uploadFile posts a multipart body with the given file name, content type
// and payload to a task's attachment collection.
func uploadFile(t *testing.T, r *gin.Engine, token string, taskID uint, fileName, contentType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}

	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write multipart content: %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/tasks/%d/attachments", taskID), &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
