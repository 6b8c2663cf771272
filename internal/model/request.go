package model

import (
	"time"

	"github.com/cleberrangel/minute-allocation-api/internal/allocation"
)

// CreateAllocationRequest representa o payload de entrada para uma alocação
type CreateAllocationRequest struct {
	allocation.RawRequest
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// AllocationRecord é uma alocação calculada e armazenada
type AllocationRecord struct {
	RequestID    string              `json:"request_id"`
	TotalMinutes int                 `json:"total_minutes"`
	CreatedAt    time.Time           `json:"created_at"`
	Allocations  []allocation.Result `json:"allocations"`
}

// AllocationPreview é o resultado de uma alocação não persistida
type AllocationPreview struct {
	TotalMinutes int                 `json:"total_minutes"`
	Allocations  []allocation.Result `json:"allocations"`
}

// AllocationSummary resume uma alocação na listagem
type AllocationSummary struct {
	RequestID    string    `json:"request_id"`
	TotalMinutes int       `json:"total_minutes"`
	TaskCount    int       `json:"task_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Response representa a resposta padrão da API
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta contém metadados da resposta
type Meta struct {
	Total int `json:"total"`
	Limit int `json:"limit,omitempty"`
}

// ErrorResponse representa uma resposta de erro
type ErrorResponse struct {
	Success    bool                   `json:"success"`
	Error      string                 `json:"error"`
	Code       string                 `json:"code,omitempty"`
	Details    string                 `json:"details,omitempty"`
	Violations []allocation.Violation `json:"violations,omitempty"`
}

// WebhookPayload representa o payload enviado para o webhook
type WebhookPayload struct {
	Event string            `json:"event"`
	Data  *AllocationRecord `json:"data"`
}

// EventAllocationCreated nomeia o evento de criação de alocação
const EventAllocationCreated = "allocation.created"
