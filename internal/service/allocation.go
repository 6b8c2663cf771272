package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cleberrangel/minute-allocation-api/internal/allocation"
	"github.com/cleberrangel/minute-allocation-api/internal/cache"
	"github.com/cleberrangel/minute-allocation-api/internal/logger"
	"github.com/cleberrangel/minute-allocation-api/internal/metrics"
	"github.com/cleberrangel/minute-allocation-api/internal/model"
	"github.com/google/uuid"
)

// AllocationStore persiste alocações calculadas
type AllocationStore interface {
	Create(ctx context.Context, record *model.AllocationRecord) error
	GetByID(ctx context.Context, requestID string) (*model.AllocationRecord, error)
	List(ctx context.Context, limit int) ([]model.AllocationSummary, error)
	Delete(ctx context.Context, requestID string) error
}

// Broadcaster publica eventos para os clientes conectados
type Broadcaster interface {
	Broadcast(messageType string, data interface{})
}

// Notifier entrega uma alocação criada a um webhook
type Notifier interface {
	Notify(ctx context.Context, webhookURL string, record *model.AllocationRecord) error
}

// AllocationService orquestra validação, cálculo, persistência e notificações
type AllocationService struct {
	store     AllocationStore
	cache     *cache.Cache
	hub       Broadcaster
	notifier  Notifier
	excel     *ExcelGenerator
	allocator *allocation.Allocator
	metrics   *metrics.Metrics

	webhookTimeout time.Duration
	pending        sync.WaitGroup
	newID          func() string
}

// AllocationServiceConfig agrupa as dependências do serviço
type AllocationServiceConfig struct {
	Store          AllocationStore
	Cache          *cache.Cache
	Hub            Broadcaster
	Notifier       Notifier
	Metrics        *metrics.Metrics
	WebhookTimeout time.Duration
}

// NewAllocationService cria um novo serviço de alocação
func NewAllocationService(cfg AllocationServiceConfig) *AllocationService {
	timeout := cfg.WebhookTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.Get()
	}
	c := cfg.Cache
	if c == nil {
		c = cache.NewCache(10 * time.Minute)
	}
	return &AllocationService{
		store:          cfg.Store,
		cache:          c,
		hub:            cfg.Hub,
		notifier:       cfg.Notifier,
		excel:          NewExcelGenerator(),
		allocator:      allocation.New(),
		metrics:        m,
		webhookTimeout: timeout,
		newID:          uuid.NewString,
	}
}

// Create valida e calcula a alocação, persiste o resultado e notifica os
// interessados. Nada é gravado quando o cálculo falha.
func (s *AllocationService) Create(ctx context.Context, req model.CreateAllocationRequest) (*model.AllocationRecord, error) {
	log := logger.Get(ctx)

	results, elapsed, err := s.compute(ctx, req.RawRequest)
	if err != nil {
		return nil, err
	}

	record := &model.AllocationRecord{
		RequestID:    s.newID(),
		TotalMinutes: allocation.TotalAllocated(results),
		Allocations:  results,
	}

	if err := s.store.Create(ctx, record); err != nil {
		log.Error().Err(err).Str("request_id", record.RequestID).Msg("Erro ao persistir alocação")
		return nil, fmt.Errorf("persistir alocação: %w", err)
	}

	s.cache.Set(record.RequestID, record)
	s.metrics.RecordAllocation(len(results), record.TotalMinutes, elapsed)

	if s.hub != nil {
		s.hub.Broadcast(model.EventAllocationCreated, record)
	}
	if req.WebhookURL != "" && s.notifier != nil {
		s.notifyAsync(ctx, req.WebhookURL, record)
	}

	logger.AuditAllocation(ctx, logger.AuditActionAllocationCreate, record.RequestID, nil, map[string]interface{}{
		"tasks":         len(results),
		"total_minutes": record.TotalMinutes,
	})
	log.Info().
		Str("request_id", record.RequestID).
		Int("tasks", len(results)).
		Int("total_minutes", record.TotalMinutes).
		Dur("engine", elapsed).
		Msg("Alocação criada")

	return record, nil
}

// Preview calcula a alocação sem persistir nem notificar
func (s *AllocationService) Preview(ctx context.Context, raw allocation.RawRequest) (*model.AllocationPreview, error) {
	results, elapsed, err := s.compute(ctx, raw)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordPreview(elapsed)

	logger.AuditAllocation(ctx, logger.AuditActionAllocationPreview, "", nil, map[string]interface{}{
		"tasks": len(results),
	})

	return &model.AllocationPreview{
		TotalMinutes: allocation.TotalAllocated(results),
		Allocations:  results,
	}, nil
}

// compute valida e executa o motor, registrando rejeições
func (s *AllocationService) compute(ctx context.Context, raw allocation.RawRequest) ([]allocation.Result, time.Duration, error) {
	req, err := allocation.Validate(raw)
	if err == nil {
		start := time.Now()
		results, allocErr := s.allocator.Allocate(req)
		if allocErr == nil {
			return results, time.Since(start), nil
		}
		err = allocErr
	}

	if errors.Is(err, allocation.ErrInfeasible) {
		s.metrics.IncrementInfeasible()
	} else {
		s.metrics.IncrementInvalid()
	}
	logger.AuditAllocation(ctx, logger.AuditActionAllocationReject, "", err, map[string]interface{}{
		"tasks": len(raw.Tasks),
	})
	logger.Get(ctx).Info().Err(err).Msg("Alocação rejeitada")
	return nil, 0, err
}

// notifyAsync entrega o webhook em background; falhas são apenas registradas
func (s *AllocationService) notifyAsync(ctx context.Context, webhookURL string, record *model.AllocationRecord) {
	// o webhook sobrevive ao fim da requisição HTTP
	base := context.WithoutCancel(ctx)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		notifyCtx, cancel := context.WithTimeout(base, s.webhookTimeout)
		defer cancel()

		err := s.notifier.Notify(notifyCtx, webhookURL, record)
		s.metrics.IncrementWebhook(err == nil)

		action := logger.AuditActionWebhookDelivered
		if err != nil {
			action = logger.AuditActionWebhookFailed
			logger.Get(base).Warn().Err(err).
				Str("request_id", record.RequestID).
				Str("url", webhookURL).
				Msg("Falha ao entregar webhook")
		}
		logger.AuditAllocation(base, action, record.RequestID, err, map[string]interface{}{
			"url": webhookURL,
		})
	}()
}

// Get retorna a alocação, consultando o cache antes do repositório
func (s *AllocationService) Get(ctx context.Context, requestID string) (*model.AllocationRecord, error) {
	if cached, ok := s.cache.Get(requestID); ok {
		if record, ok := cached.(*model.AllocationRecord); ok {
			return record, nil
		}
	}

	record, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(record.RequestID, record)
	logger.AuditAllocation(ctx, logger.AuditActionAllocationView, record.RequestID, nil, nil)
	return record, nil
}

// List retorna as alocações mais recentes
func (s *AllocationService) List(ctx context.Context, limit int) ([]model.AllocationSummary, error) {
	summaries, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listar alocações: %w", err)
	}
	return summaries, nil
}

// Delete remove a alocação e a retira do cache
func (s *AllocationService) Delete(ctx context.Context, requestID string) error {
	err := s.store.Delete(ctx, requestID)
	s.cache.Delete(requestID)
	if err != nil {
		return err
	}

	s.metrics.IncrementDeleted()
	logger.AuditAllocation(ctx, logger.AuditActionAllocationDelete, requestID, nil, nil)
	return nil
}

// Export gera a planilha de uma alocação armazenada
func (s *AllocationService) Export(ctx context.Context, requestID string) (*bytes.Buffer, string, error) {
	record, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, "", err
	}

	buf, err := s.excel.Generate(record)
	if err != nil {
		logger.AuditAllocation(ctx, logger.AuditActionAllocationExport, requestID, err, nil)
		return nil, "", fmt.Errorf("gerar planilha: %w", err)
	}

	s.metrics.IncrementExport()
	logger.AuditAllocation(ctx, logger.AuditActionAllocationExport, requestID, nil, map[string]interface{}{
		"size_bytes": buf.Len(),
	})
	return buf, ExportFileName(record), nil
}

// Shutdown espera os webhooks pendentes ou o fim de ctx
func (s *AllocationService) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
