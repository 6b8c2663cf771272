package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cleberrangel/minute-allocation-api/internal/logger"
	"github.com/cleberrangel/minute-allocation-api/internal/model"
)

// maxErrorBody limita o corpo de erro lido da resposta do webhook
const maxErrorBody = 4 << 10

// WebhookService envia alocações criadas para webhooks
type WebhookService struct {
	httpClient *http.Client
}

// NewWebhookService cria um novo serviço de webhook
func NewWebhookService(timeout time.Duration) *WebhookService {
	return &WebhookService{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Notify envia a alocação como JSON para o webhook
func (w *WebhookService) Notify(ctx context.Context, webhookURL string, record *model.AllocationRecord) error {
	payload := model.WebhookPayload{
		Event: model.EventAllocationCreated,
		Data:  record,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("criar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID := logger.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("enviar webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: status %d: %s", model.ErrWebhookFailed, resp.StatusCode, string(respBody))
	}

	logger.Get(ctx).Info().
		Str("url", webhookURL).
		Int("status", resp.StatusCode).
		Str("request_id", record.RequestID).
		Msg("Webhook enviado com sucesso")
	return nil
}
