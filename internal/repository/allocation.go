package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cleberrangel/minute-allocation-api/internal/allocation"
	"github.com/cleberrangel/minute-allocation-api/internal/logger"
	"github.com/cleberrangel/minute-allocation-api/internal/model"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// DefaultListLimit é o limite usado quando nenhum é informado
const DefaultListLimit = 50

// MaxListLimit é o maior limite aceito na listagem
const MaxListLimit = 500

// AllocationRepository gerencia a persistência das alocações
type AllocationRepository struct {
	db *sql.DB
}

// NewAllocationRepository cria um novo repositório de alocações
func NewAllocationRepository(db *sql.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// Create grava a requisição e todas as linhas de resultado em uma transação
func (r *AllocationRepository) Create(ctx context.Context, record *model.AllocationRecord) error {
	log := logger.Get(ctx)

	id, err := uuid.Parse(record.RequestID)
	if err != nil {
		return model.ErrInvalidID
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("erro ao iniciar transação: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO allocation_requests (id, total_minutes, created_at)
		 VALUES ($1, $2, NOW())
		 RETURNING created_at`,
		id, record.TotalMinutes,
	).Scan(&record.CreatedAt)
	if err != nil {
		return fmt.Errorf("erro ao inserir requisição: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("task_allocations",
		"request_id", "position", "task_id", "ratio", "allocated_minutes", "min_minutes", "max_minutes"))
	if err != nil {
		return fmt.Errorf("erro ao preparar cópia das tarefas: %w", err)
	}

	for i, result := range record.Allocations {
		if _, err := stmt.ExecContext(ctx, id.String(), i, result.TaskID, result.Ratio,
			result.AllocatedMinutes, nullableInt(result.MinMinutes), nullableInt(result.MaxMinutes)); err != nil {
			stmt.Close()
			return fmt.Errorf("erro ao copiar tarefa %s: %w", result.TaskID, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("erro ao finalizar cópia das tarefas: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("erro ao fechar cópia das tarefas: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("erro ao confirmar transação: %w", err)
	}

	log.Debug().
		Str("request_id", record.RequestID).
		Int("tasks", len(record.Allocations)).
		Msg("Alocação persistida")
	return nil
}

// GetByID retorna a alocação com as tarefas na ordem de entrada
func (r *AllocationRepository) GetByID(ctx context.Context, requestID string) (*model.AllocationRecord, error) {
	id, err := uuid.Parse(requestID)
	if err != nil {
		return nil, model.ErrInvalidID
	}

	record := &model.AllocationRecord{RequestID: id.String()}
	err = r.db.QueryRowContext(ctx,
		`SELECT total_minutes, created_at FROM allocation_requests WHERE id = $1`, id,
	).Scan(&record.TotalMinutes, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrAllocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar requisição: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT task_id, ratio, allocated_minutes, min_minutes, max_minutes
		 FROM task_allocations
		 WHERE request_id = $1
		 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar tarefas: %w", err)
	}
	defer rows.Close()

	record.Allocations = []allocation.Result{}
	for rows.Next() {
		var (
			result     allocation.Result
			minV, maxV sql.NullInt64
		)
		if err := rows.Scan(&result.TaskID, &result.Ratio, &result.AllocatedMinutes, &minV, &maxV); err != nil {
			return nil, fmt.Errorf("erro ao ler tarefa: %w", err)
		}
		result.MinMinutes = intFromNull(minV)
		result.MaxMinutes = intFromNull(maxV)
		record.Allocations = append(record.Allocations, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar tarefas: %w", err)
	}

	return record, nil
}

// List retorna as alocações mais recentes
func (r *AllocationRepository) List(ctx context.Context, limit int) ([]model.AllocationSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.total_minutes, r.created_at, COUNT(t.id)
		 FROM allocation_requests r
		 LEFT JOIN task_allocations t ON t.request_id = r.id
		 GROUP BY r.id, r.total_minutes, r.created_at
		 ORDER BY r.created_at DESC, r.id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("erro ao listar alocações: %w", err)
	}
	defer rows.Close()

	summaries := []model.AllocationSummary{}
	for rows.Next() {
		var s model.AllocationSummary
		if err := rows.Scan(&s.RequestID, &s.TotalMinutes, &s.CreatedAt, &s.TaskCount); err != nil {
			return nil, fmt.Errorf("erro ao ler alocação: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar alocações: %w", err)
	}

	return summaries, nil
}

// Delete remove a alocação; as tarefas são removidas em cascata
func (r *AllocationRepository) Delete(ctx context.Context, requestID string) error {
	id, err := uuid.Parse(requestID)
	if err != nil {
		return model.ErrInvalidID
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM allocation_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("erro ao remover alocação: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("erro ao verificar remoção: %w", err)
	}
	if affected == 0 {
		return model.ErrAllocationNotFound
	}

	logger.Get(ctx).Info().Str("request_id", id.String()).Msg("Alocação removida")
	return nil
}

// Ping verifica a conexão com o banco
func (r *AllocationRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
