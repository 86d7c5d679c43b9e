//nolint:noctx // Test file uses http.NewRequest for simplicity
package quests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrotwars/carrotwars/internal/models"
	questssvc "github.com/carrotwars/carrotwars/internal/service/quests"
	"github.com/carrotwars/carrotwars/pkg/logger"
)

// Mock Quest Service
type mockQuestService struct {
	quests    map[uint]*models.Quest
	nextID    uint
	transient error
}

func newMockQuestService() *mockQuestService {
	return &mockQuestService{quests: make(map[uint]*models.Quest), nextID: 1}
}

func (m *mockQuestService) Propose(ctx context.Context, ownerID uint, input questssvc.ProposeInput) (*models.Quest, error) {
	if input.Rating < models.QuestRatingMin || input.Rating > models.QuestRatingMax {
		return nil, questssvc.ErrRatingOutOfRange
	}
	quest := &models.Quest{
		ID:     m.nextID,
		Title:  input.Title,
		Rating: input.Rating,
		Bomb:   input.Bomb,
		Status: models.QuestStatusCreated,
	}
	m.nextID++
	m.quests[quest.ID] = quest
	return quest, nil
}

// transition simulates a guarded status change: wrong status returns the
// quest untouched together with the sentinel.
func (m *mockQuestService) transition(questID uint, from, to string) (*models.Quest, error) {
	quest, ok := m.quests[questID]
	if !ok {
		return nil, fmt.Errorf("quest not found")
	}
	if m.transient != nil {
		return quest, m.transient
	}
	if quest.Status != from {
		return quest, questssvc.ErrInvalidState
	}
	quest.Status = to
	return quest, nil
}

func (m *mockQuestService) Accept(ctx context.Context, actorID, questID uint) (*models.Quest, error) {
	return m.transition(questID, models.QuestStatusCreated, models.QuestStatusAccepted)
}

func (m *mockQuestService) Decline(ctx context.Context, actorID, questID uint) (*models.Quest, error) {
	return m.transition(questID, models.QuestStatusCreated, models.QuestStatusDeclined)
}

func (m *mockQuestService) Complete(ctx context.Context, actorID, questID uint) (*models.Quest, error) {
	return m.transition(questID, models.QuestStatusAccepted, models.QuestStatusMarkedComplete)
}

func (m *mockQuestService) Confirm(ctx context.Context, actorID, questID uint) (*models.Quest, error) {
	return m.transition(questID, models.QuestStatusMarkedComplete, models.QuestStatusDone)
}

func (m *mockQuestService) Deny(ctx context.Context, actorID, questID uint) (*models.Quest, error) {
	return m.transition(questID, models.QuestStatusMarkedComplete, models.QuestStatusAccepted)
}

func (m *mockQuestService) Get(ctx context.Context, actorID, questID uint) (*models.Quest, error) {
	quest, ok := m.quests[questID]
	if !ok {
		return nil, fmt.Errorf("quest not found")
	}
	return quest, nil
}

func (m *mockQuestService) ListForUser(ctx context.Context, userID uint) ([]models.Quest, error) {
	var out []models.Quest
	for _, q := range m.quests {
		out = append(out, *q)
	}
	return out, nil
}

func (m *mockQuestService) OverviewForUser(ctx context.Context, userID uint) (*questssvc.Overview, error) {
	return &questssvc.Overview{}, nil
}

// Test Setup

func setupTestHandler() (*Handler, *mockQuestService) {
	questService := newMockQuestService()
	log := logger.New("debug", "console", "stdout")

	handler := NewHandlerWithInterfaces(questService, log)

	return handler, questService
}

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	// Stand-in for the JWT middleware.
	router.Use(func(c *gin.Context) {
		c.Set("userID", uint(1))
		c.Next()
	})

	api := router.Group("/api/v1")
	api.POST("/quests", handler.Propose)
	api.GET("/quests", handler.List)
	api.GET("/quests/overview", handler.Overview)
	api.GET("/quests/:id", handler.Get)
	api.POST("/quests/:id/accept", handler.Accept)
	api.POST("/quests/:id/decline", handler.Decline)
	api.POST("/quests/:id/complete", handler.Complete)
	api.POST("/quests/:id/confirm", handler.Confirm)
	api.POST("/quests/:id/deny", handler.Deny)

	return router
}

func postJSON(router *gin.Engine, url string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", url, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// Tests

func TestPropose_Success(t *testing.T) {
	handler, _ := setupTestHandler()
	router := setupRouter(handler)

	w := postJSON(router, "/api/v1/quests", gin.H{
		"quester_id": 2,
		"title":      "mow the lawn",
		"rating":     3,
	})

	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	quest := response["quest"].(map[string]any)
	assert.Equal(t, "mow the lawn", quest["title"])
	assert.Equal(t, models.QuestStatusCreated, quest["status"])
}

func TestPropose_RatingOutOfRange(t *testing.T) {
	handler, _ := setupTestHandler()
	router := setupRouter(handler)

	w := postJSON(router, "/api/v1/quests", gin.H{
		"quester_id": 2,
		"title":      "mow the lawn",
		"rating":     9,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response["error"], "rating")
}

func TestPropose_MissingTitle(t *testing.T) {
	handler, _ := setupTestHandler()
	router := setupRouter(handler)

	w := postJSON(router, "/api/v1/quests", gin.H{
		"quester_id": 2,
		"rating":     3,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPropose_TitleTooLong(t *testing.T) {
	handler, svc := setupTestHandler()
	router := setupRouter(handler)

	// The quest title column holds 60 characters; longer titles are
	// rejected up front instead of surfacing as a storage error.
	w := postJSON(router, "/api/v1/quests", gin.H{
		"quester_id": 2,
		"title":      strings.Repeat("x", 61),
		"rating":     3,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.quests)
}

func TestAccept_Success(t *testing.T) {
	handler, questService := setupTestHandler()
	router := setupRouter(handler)
	questService.quests[1] = &models.Quest{ID: 1, Status: models.QuestStatusCreated}

	w := postJSON(router, "/api/v1/quests/1/accept", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	quest := response["quest"].(map[string]any)
	assert.Equal(t, models.QuestStatusAccepted, quest["status"])
}

func TestAccept_InvalidStateIsSilent(t *testing.T) {
	// Accepting a done quest answers 200 with the quest unchanged.
	handler, questService := setupTestHandler()
	router := setupRouter(handler)
	questService.quests[1] = &models.Quest{ID: 1, Status: models.QuestStatusDone}

	w := postJSON(router, "/api/v1/quests/1/accept", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	quest := response["quest"].(map[string]any)
	assert.Equal(t, models.QuestStatusDone, quest["status"])
}

func TestAccept_PermissionDeniedIsSilent(t *testing.T) {
	handler, questService := setupTestHandler()
	router := setupRouter(handler)
	questService.quests[1] = &models.Quest{ID: 1, Status: models.QuestStatusCreated}
	questService.transient = questssvc.ErrPermissionDenied

	w := postJSON(router, "/api/v1/quests/1/accept", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	quest := response["quest"].(map[string]any)
	assert.Equal(t, models.QuestStatusCreated, quest["status"], "denied transition must not change the quest")
}

func TestConfirm_Success(t *testing.T) {
	handler, questService := setupTestHandler()
	router := setupRouter(handler)
	questService.quests[1] = &models.Quest{ID: 1, Status: models.QuestStatusMarkedComplete}

	w := postJSON(router, "/api/v1/quests/1/confirm", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	quest := response["quest"].(map[string]any)
	assert.Equal(t, models.QuestStatusDone, quest["status"])
}

func TestTransition_UnknownQuest(t *testing.T) {
	handler, _ := setupTestHandler()
	router := setupRouter(handler)

	w := postJSON(router, "/api/v1/quests/42/accept", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTransition_InvalidID(t *testing.T) {
	handler, _ := setupTestHandler()
	router := setupRouter(handler)

	w := postJSON(router, "/api/v1/quests/abc/accept", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGet_Success(t *testing.T) {
	handler, questService := setupTestHandler()
	router := setupRouter(handler)
	questService.quests[7] = &models.Quest{ID: 7, Title: "walk the dog", Status: models.QuestStatusAccepted}

	req, _ := http.NewRequest("GET", "/api/v1/quests/7", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	quest := response["quest"].(map[string]any)
	assert.Equal(t, "walk the dog", quest["title"])
}

func TestList_Success(t *testing.T) {
	handler, questService := setupTestHandler()
	router := setupRouter(handler)
	questService.quests[1] = &models.Quest{ID: 1, Status: models.QuestStatusCreated}
	questService.quests[2] = &models.Quest{ID: 2, Status: models.QuestStatusAccepted}

	req, _ := http.NewRequest("GET", "/api/v1/quests", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, float64(2), response["total_quests"])
}
