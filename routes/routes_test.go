package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cognichat/internal/session"
	"cognichat/models"
	"cognichat/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminSecret = "route-test-secret"

type fakePipeline struct {
	mu       sync.Mutex
	errs     []error
	built    bool
	rebuilds int
}

func (f *fakePipeline) Ask(ctx context.Context, question string) (*models.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	if question == "" {
		return nil, models.ErrEmptyQuestion
	}
	f.built = true
	return &models.Answer{
		Text: "LangSmith helps you trace chains.",
		SupportingChunks: []models.Chunk{
			{ID: "a:0", Text: "tracing", Metadata: map[string]string{models.MetadataSource: "https://docs.smith.langchain.com/tracing"}},
			{ID: "b:0", Text: "intro", Metadata: map[string]string{models.MetadataSource: "https://docs.smith.langchain.com/"}},
		},
		Duration: 1500 * time.Millisecond,
	}, nil
}

func (f *fakePipeline) Status() models.IndexStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := models.IndexStatus{Built: f.built}
	if f.built {
		s.Chunks = 2
	}
	return s
}

func (f *fakePipeline) Rebuild(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuilds++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	f.built = true
	return nil
}

func (f *fakePipeline) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.built = false
}

func setupRouter(p *fakePipeline, rdb *redis.Client) (*gin.Engine, *session.Manager) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	manager := session.NewManager(p, session.NewMemoryStore(), time.Hour)
	SetupHealthRoutes(router, p, rdb)
	SetupAskRoutes(router, p)
	SetupChatRoutes(router, manager)
	SetupAdminRoutes(router, adminSecret, p, manager)
	return router, manager
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAsk(t *testing.T) {
	router, _ := setupRouter(&fakePipeline{}, nil)

	w := doJSON(t, router, http.MethodPost, "/ask", gin.H{"question": "How do I trace?"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "LangSmith helps you trace chains.", resp.Answer)
	assert.Equal(t, []string{
		"https://docs.smith.langchain.com/tracing",
		"https://docs.smith.langchain.com/",
	}, resp.Sources)
	assert.Equal(t, int64(1500), resp.ResponseTimeMs)
}

func TestAskBadInput(t *testing.T) {
	router, _ := setupRouter(&fakePipeline{}, nil)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodPost, "/ask", gin.H{}).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodPost, "/ask", gin.H{"question": ""}).Code)
}

func TestAskErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&models.GenerationError{Model: "m", Err: errors.New("503")}, http.StatusServiceUnavailable, "generation_failed"},
		{&models.TimeoutError{Op: "generation", Timeout: time.Second}, http.StatusGatewayTimeout, "timeout"},
		{&models.FetchError{Locator: "https://x", Err: errors.New("dns")}, http.StatusServiceUnavailable, "index_unavailable"},
		{models.ErrEmptyCorpus, http.StatusServiceUnavailable, "index_unavailable"},
		{models.ErrInvalidK, http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			router, _ := setupRouter(&fakePipeline{errs: []error{tt.err}}, nil)
			w := doJSON(t, router, http.MethodPost, "/ask", gin.H{"question": "q"})
			assert.Equal(t, tt.status, w.Code)

			var body utils.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.ErrorCode)
		})
	}
}

func TestChatSessionLifecycle(t *testing.T) {
	p := &fakePipeline{}
	router, _ := setupRouter(p, nil)

	w := doJSON(t, router, http.MethodPost, "/chat/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.SessionID)
	base := "/chat/sessions/" + created.SessionID

	w = doJSON(t, router, http.MethodPost, base+"/messages", gin.H{"message": "what is tracing?"})
	require.Equal(t, http.StatusOK, w.Code)
	var reply models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.Equal(t, created.SessionID, reply.SessionID)
	assert.Len(t, reply.Chunks, 2)
	assert.Len(t, reply.Sources, 2)

	p.errs = []error{&models.GenerationError{Model: "m", Err: errors.New("down")}}
	w = doJSON(t, router, http.MethodPost, base+"/messages", gin.H{"message": "and datasets?"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(t, router, http.MethodGet, base+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history models.ConversationHistory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Messages, 3)
	assert.Equal(t, models.RoleUser, history.Messages[2].Role, "failed turn keeps only the question")

	assert.Equal(t, http.StatusNoContent, doJSON(t, router, http.MethodDelete, base+"/messages", nil).Code)
	w = doJSON(t, router, http.MethodGet, base+"/messages", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Empty(t, history.Messages)

	assert.Equal(t, http.StatusNoContent, doJSON(t, router, http.MethodDelete, base, nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, base+"/messages", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodDelete, base, nil).Code)
}

func TestChatUnknownSession(t *testing.T) {
	router, _ := setupRouter(&fakePipeline{}, nil)
	w := doJSON(t, router, http.MethodPost, "/chat/sessions/nope/messages", gin.H{"message": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminIndex(t *testing.T) {
	p := &fakePipeline{}
	router, _ := setupRouter(p, nil)

	assert.Equal(t, http.StatusUnauthorized, doJSON(t, router, http.MethodGet, "/admin/index", nil).Code)

	token, err := utils.GenerateAdminToken("ops", adminSecret, time.Hour)
	require.NoError(t, err)
	auth := []string{"Authorization", "Bearer " + token}

	w := doJSON(t, router, http.MethodGet, "/admin/index", nil, auth...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"built":false`)

	w = doJSON(t, router, http.MethodPost, "/admin/index/rebuild", nil, auth...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, p.rebuilds)
	assert.True(t, p.Status().Built)

	p.errs = []error{&models.FetchError{Locator: "https://x", Err: errors.New("down")}}
	w = doJSON(t, router, http.MethodPost, "/admin/index/rebuild", nil, auth...)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	assert.Equal(t, http.StatusNoContent, doJSON(t, router, http.MethodDelete, "/admin/index", nil, auth...).Code)
	assert.False(t, p.Status().Built)
}

func TestAdminAsyncRebuild(t *testing.T) {
	p := &fakePipeline{}
	router, _ := setupRouter(p, nil)
	token, err := utils.GenerateAdminToken("ops", adminSecret, time.Hour)
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodPost, "/admin/index/rebuild?async=true", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Eventually(t, func() bool { return p.Status().Built }, time.Second, 10*time.Millisecond)
}

func TestHealthAndReady(t *testing.T) {
	p := &fakePipeline{}
	router, _ := setupRouter(p, nil)

	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(t, router, http.MethodGet, "/ready", nil).Code)

	require.NoError(t, p.Rebuild(context.Background()))
	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/ready", nil).Code)
}

func TestReadyChecksRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()

	p := &fakePipeline{built: true}
	router, _ := setupRouter(p, rdb)
	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/ready", nil).Code)

	mr.Close()
	w := doJSON(t, router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unreachable")
}

type fakeWriter struct {
	err     error
	prompts []string
}

func (f *fakeWriter) Complete(ctx context.Context, prompt string) (*models.Completion, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Completion{Text: "completed: " + prompt, Model: "fake-llm", Duration: 250 * time.Millisecond}, nil
}

func (f *fakeWriter) Compose(ctx context.Context, kind models.CompositionKind, topic string) (*models.Completion, error) {
	f.prompts = append(f.prompts, string(kind)+":"+topic)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Completion{Text: string(kind) + " about " + topic, Model: "fake-llm"}, nil
}

func TestComposeRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	writer := &fakeWriter{}
	SetupComposeRoutes(router, writer)

	w := doJSON(t, router, http.MethodPost, "/complete", gin.H{"prompt": "Say hi"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.CompletionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "completed: Say hi", resp.Output)
	assert.Equal(t, "fake-llm", resp.Model)
	assert.Equal(t, int64(250), resp.ResponseTimeMs)

	w = doJSON(t, router, http.MethodPost, "/essay", gin.H{"topic": "tracing"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "essay about tracing", resp.Output)

	w = doJSON(t, router, http.MethodPost, "/poem", gin.H{"topic": "chains"})
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"Say hi", "essay:tracing", "poem:chains"}, writer.prompts)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodPost, "/complete", gin.H{}).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodPost, "/poem", gin.H{"topic": ""}).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodPost, "/limerick", gin.H{"topic": "x"}).Code)
}

func TestComposeRoutesErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupComposeRoutes(router, &fakeWriter{err: &models.GenerationError{Model: "fake-llm", Err: errors.New("503")}})
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(t, router, http.MethodPost, "/essay", gin.H{"topic": "x"}).Code)

	router = gin.New()
	SetupComposeRoutes(router, &fakeWriter{err: models.ErrEmptyPrompt})
	assert.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodPost, "/complete", gin.H{"prompt": " "}).Code)
}
