package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cleberrangel/minute-allocation-api/internal/allocation"
	"github.com/cleberrangel/minute-allocation-api/internal/logger"
	"github.com/cleberrangel/minute-allocation-api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookPostsRecordAsJSON(t *testing.T) {
	var (
		got       model.WebhookPayload
		requestID string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		requestID = r.Header.Get("X-Request-ID")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	record := &model.AllocationRecord{
		RequestID:    "8d3c8b2e-2b1f-4e55-9a55-6f0f5d6c9a10",
		TotalMinutes: 10,
		Allocations:  []allocation.Result{{TaskID: "a", Ratio: 1, AllocatedMinutes: 10}},
	}

	ctx := logger.WithRequestID(context.Background(), "req-42")
	err := NewWebhookService(time.Second).Notify(ctx, server.URL, record)
	require.NoError(t, err)

	assert.Equal(t, model.EventAllocationCreated, got.Event)
	require.NotNil(t, got.Data)
	assert.Equal(t, record.RequestID, got.Data.RequestID)
	assert.Equal(t, record.Allocations, got.Data.Allocations)
	assert.Equal(t, "req-42", requestID)
}

func TestWebhookErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewWebhookService(time.Second).Notify(context.Background(), server.URL, &model.AllocationRecord{})
	assert.ErrorIs(t, err, model.ErrWebhookFailed)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	err := NewWebhookService(50*time.Millisecond).Notify(context.Background(), server.URL, &model.AllocationRecord{})
	assert.Error(t, err)
}
