package promptrun

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geolens/engine/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(f.orch, f.executor, f.status, NewHistory(f.db))
	h.RegisterRoutes(r.Group("/api/v1"), func(c *gin.Context) { c.Next() })
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Message
}

func TestHandlerStartBatch(t *testing.T) {
	f := newFixture(t, echoAdapter(), stubClassifier{}, "p1", "p2")
	r := newRouter(f)

	w := do(r, http.MethodPost, "/api/v1/domains/"+f.domain.ID+"/prompt-runs", `{"provider":"openai"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var ack BatchAck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.True(t, ack.Accepted)
	assert.Equal(t, 2, ack.TotalPrompts)
	f.orch.Wait()

	w = do(r, http.MethodGet, "/api/v1/domains/"+f.domain.ID+"/prompt-runs/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st BatchStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, models.PromptRunCompleted, st.Status)
	assert.Equal(t, 2, st.Progress)
}

func TestHandlerErrorMapping(t *testing.T) {
	f := newFixture(t, echoAdapter(), stubClassifier{}, "p1")
	empty := models.DomainModel{Name: "empty.io", BrandName: "Empty"}
	require.NoError(t, f.db.Create(&empty).Error)
	r := newRouter(f)

	w := do(r, http.MethodPost, "/api/v1/domains/"+empty.ID+"/prompt-runs", `{"provider":"chatgpt"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No active prompts to run", message(t, w))

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/domains/"+f.domain.ID+"/prompt-runs", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/domains/"+f.domain.ID+"/prompt-runs", `{"provider":"gemini"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/domains/"+f.domain.ID+"/prompt-runs", `{"provider":"grok"}`).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/v1/domains/missing/prompt-runs", `{"provider":"chatgpt"}`).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/domains/missing/prompt-runs/status", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/v1/prompts/missing/run", `{"provider":"chatgpt"}`).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/prompts/missing/runs", "").Code)

	now := time.Now().UTC()
	require.NoError(t, f.db.Model(&models.DomainModel{}).Where("id = ?", f.domain.ID).Updates(map[string]any{
		"prompt_run_status":     models.PromptRunRunning,
		"prompt_run_started_at": now,
	}).Error)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/v1/domains/"+f.domain.ID+"/prompt-runs", `{"provider":"chatgpt"}`).Code)

	f.orch.Close()
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodPost, "/api/v1/domains/"+empty.ID+"/prompt-runs", `{"provider":"chatgpt"}`).Code)
}

func TestHandlerRunOneAndHistory(t *testing.T) {
	f := newFixture(t, echoAdapter(), stubClassifier{}, "p1")
	r := newRouter(f)
	path := "/api/v1/prompts/" + f.prompts[0].ID

	for i := 0; i < 3; i++ {
		w := do(r, http.MethodPost, path+"/run", `{"provider":"chatgpt"}`)
		require.Equal(t, http.StatusOK, w.Code)
		var res RunResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.True(t, res.Success)
	}

	w := do(r, http.MethodGet, path+"/runs?size=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data       []models.PromptRunModel `json:"data"`
		Pagination struct {
			Total       int64 `json:"total"`
			HasNextPage bool  `json:"has_next_page"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Data, 2)
	assert.EqualValues(t, 3, page.Pagination.Total)
	assert.True(t, page.Pagination.HasNextPage)
	assert.NotNil(t, page.Data[0].Analysis)
	assert.False(t, page.Data[0].ExecutedAt.Before(page.Data[1].ExecutedAt))
	newest := page.Data[0].ID

	w = do(r, http.MethodGet, path+"/runs?provider=claude", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Empty(t, page.Data)

	w = do(r, http.MethodGet, path+"/runs/latest?provider=openai", "")
	require.Equal(t, http.StatusOK, w.Code)
	var latest models.PromptRunModel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &latest))
	assert.Equal(t, newest, latest.ID)
	assert.Equal(t, "chatgpt", latest.LLMProvider)
	assert.NotNil(t, latest.Analysis)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, path+"/runs/latest?provider=claude", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, path+"/runs/latest", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/prompts/missing/runs/latest?provider=chatgpt", "").Code)
}
