package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	// Authentication
	AuditActionAuthFailed AuditAction = "AUTH_FAILED"
	AuditActionRateLimit  AuditAction = "RATE_LIMITED"

	// Allocation operations
	AuditActionAllocationCreate  AuditAction = "ALLOCATION_CREATE"
	AuditActionAllocationReject  AuditAction = "ALLOCATION_REJECT"
	AuditActionAllocationPreview AuditAction = "ALLOCATION_PREVIEW"
	AuditActionAllocationView    AuditAction = "ALLOCATION_VIEW"
	AuditActionAllocationExport  AuditAction = "ALLOCATION_EXPORT"
	AuditActionAllocationDelete  AuditAction = "ALLOCATION_DELETE"

	// Webhook delivery
	AuditActionWebhookDelivered AuditAction = "WEBHOOK_DELIVERED"
	AuditActionWebhookFailed    AuditAction = "WEBHOOK_FAILED"

	// WebSocket operations
	AuditActionWSConnect    AuditAction = "WS_CONNECT"
	AuditActionWSDisconnect AuditAction = "WS_DISCONNECT"

	// API operations
	AuditActionAPIRequest AuditAction = "API_REQUEST"
	AuditActionAPIError   AuditAction = "API_ERROR"
)

// AuditEvent represents an audit log entry
type AuditEvent struct {
	Action      AuditAction
	Resource    string
	ResourceID  string
	Details     map[string]interface{}
	ClientIP    string
	RequestID   string
	OperationID string
	Success     bool
	Error       string
	Duration    int64 // milliseconds
	Method      string
	Path        string
	StatusCode  int
}

var auditLogger = zerolog.Nop()

// InitAudit initializes the audit logger
func InitAudit() {
	auditLogger = globalLogger.With().Str("log_type", "audit").Logger()
}

// Audit logs an audit event
func Audit(ctx context.Context, event AuditEvent) {
	if event.RequestID == "" {
		event.RequestID = GetRequestID(ctx)
	}
	if event.OperationID == "" {
		event.OperationID = GetOperationID(ctx)
	}

	logEvent := auditLogger.Info()
	if !event.Success {
		logEvent = auditLogger.Warn()
	}

	logEvent.
		Str("action", string(event.Action)).
		Str("resource", event.Resource).
		Str("resource_id", event.ResourceID).
		Str("client_ip", event.ClientIP).
		Str("request_id", event.RequestID).
		Bool("success", event.Success).
		Time("timestamp", time.Now().UTC())

	if event.OperationID != "" {
		logEvent.Str("operation_id", event.OperationID)
	}
	if event.Error != "" {
		logEvent.Str("error", event.Error)
	}
	if event.Duration > 0 {
		logEvent.Int64("duration_ms", event.Duration)
	}
	if event.Method != "" {
		logEvent.Str("method", event.Method)
	}
	if event.Path != "" {
		logEvent.Str("path", event.Path)
	}
	if event.StatusCode > 0 {
		logEvent.Int("status_code", event.StatusCode)
	}
	if len(event.Details) > 0 {
		logEvent.Interface("details", event.Details)
	}

	logEvent.Msg("Audit event")
}

// AuditRequest logs an API request audit event
func AuditRequest(ctx context.Context, method, path string, statusCode int, duration int64, clientIP string) {
	success := statusCode < 400
	action := AuditActionAPIRequest
	if !success {
		action = AuditActionAPIError
	}

	Audit(ctx, AuditEvent{
		Action:     action,
		Resource:   "api",
		ResourceID: path,
		Method:     method,
		Path:       path,
		StatusCode: statusCode,
		Duration:   duration,
		ClientIP:   clientIP,
		Success:    success,
	})
}

// AuditAllocation logs an operation on a stored allocation
func AuditAllocation(ctx context.Context, action AuditAction, requestID string, err error, details map[string]interface{}) {
	event := AuditEvent{
		Action:     action,
		Resource:   "allocation",
		ResourceID: requestID,
		Success:    err == nil,
		Details:    details,
	}
	if err != nil {
		event.Error = err.Error()
	}
	Audit(ctx, event)
}

// AuditWebSocket logs WebSocket connection events
func AuditWebSocket(ctx context.Context, action AuditAction, clientIP string, details map[string]interface{}) {
	Audit(ctx, AuditEvent{
		Action:   action,
		Resource: "websocket",
		ClientIP: clientIP,
		Success:  true,
		Details:  details,
	})
}
