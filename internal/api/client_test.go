package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aidso/geo-console/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_BearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := New(server.URL)

	client.SetToken("tok-123")
	_, err := client.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)

	client.ClearToken()
	_, err = client.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestClient_GetTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tasks/t1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"t1","keyword":"geo ranking","status":"running","progress":40,"logs":["queued","analyzing"]}`))
	}))
	defer server.Close()

	client := New(server.URL)
	task, err := client.GetTask(context.Background(), "t1")

	require.NoError(t, err)
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, models.TaskRunning, task.Status)
	assert.Equal(t, 40, task.Progress)
	assert.Equal(t, []string{"queued", "analyzing"}, task.Logs)
}

func TestClient_GetTask_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"task not found"}`))
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.GetTask(context.Background(), "gone")

	assert.True(t, IsNotFound(err))
}

func TestClient_CreateTask_ClassifiesBalanceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"点数不足","requiredPoints":10,"currentPoints":3}`))
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.CreateTask(context.Background(), CreateTaskRequest{
		Keyword:    "x",
		SearchType: models.SearchQuick,
		Models:     []string{"m1"},
	})

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, ErrInsufficientBalance, apiErr.Kind)
	assert.Equal(t, 10, apiErr.RequiredPoints)
	assert.Equal(t, 3, apiErr.CurrentPoints)
}

func TestClient_ExportMentionsCSV_PassesBytesThrough(t *testing.T) {
	csv := "taskId,modelKey,mentions\nt1,m1,4\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/brand-keywords/bk1/mentions.csv", r.URL.Path)
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(csv))
	}))
	defer server.Close()

	client := New(server.URL)
	data, err := client.ExportMentionsCSV(context.Background(), "bk1")

	require.NoError(t, err)
	assert.Equal(t, csv, string(data))
}

func TestClient_Mentions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/brand-keywords/bk1/mentions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"mentions":[{"id":"m1","brandKeywordId":"bk1","taskId":"t1","modelKey":"gpt","mentionCount":2,"sentiment":"positive"}],
			"stats":{"totalMentions":2,"averageRank":1.5,"sentiment":{"positive":1}}
		}`))
	}))
	defer server.Close()

	client := New(server.URL)
	resp, err := client.Mentions(context.Background(), "bk1")

	require.NoError(t, err)
	require.Len(t, resp.Mentions, 1)
	assert.Equal(t, models.SentimentPositive, resp.Mentions[0].Sentiment)
	assert.Equal(t, 2, resp.Stats.TotalMentions)
	assert.Equal(t, 1.5, resp.Stats.AverageRank)
}
