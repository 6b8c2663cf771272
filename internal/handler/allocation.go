package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cleberrangel/minute-allocation-api/internal/allocation"
	"github.com/cleberrangel/minute-allocation-api/internal/logger"
	"github.com/cleberrangel/minute-allocation-api/internal/model"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AllocationAPI é o conjunto de operações que o handler expõe
type AllocationAPI interface {
	Create(ctx context.Context, req model.CreateAllocationRequest) (*model.AllocationRecord, error)
	Preview(ctx context.Context, raw allocation.RawRequest) (*model.AllocationPreview, error)
	Get(ctx context.Context, requestID string) (*model.AllocationRecord, error)
	List(ctx context.Context, limit int) ([]model.AllocationSummary, error)
	Delete(ctx context.Context, requestID string) error
	Export(ctx context.Context, requestID string) (*bytes.Buffer, string, error)
}

// AllocationHandler manipula requisições de alocação de minutos
type AllocationHandler struct {
	service AllocationAPI
}

// NewAllocationHandler cria um novo handler de alocações
func NewAllocationHandler(service AllocationAPI) *AllocationHandler {
	return &AllocationHandler{service: service}
}

// CreateAllocation calcula e armazena uma alocação
// @Summary      Cria alocação
// @Description  Distribui total_minutes entre as tarefas proporcionalmente às razões, respeitando mínimos e máximos
// @Tags         allocations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body model.CreateAllocationRequest true "Tarefas e total de minutos"
// @Success      201 {object} model.Response
// @Failure      400 {object} model.ErrorResponse
// @Failure      422 {object} model.ErrorResponse
// @Failure      429 {object} model.ErrorResponse
// @Router       /api/v1/allocations [post]
func (h *AllocationHandler) CreateAllocation(c *gin.Context) {
	var req model.CreateAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}

	record, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model.Response{
		Success: true,
		Data:    record,
	})
}

// PreviewAllocation calcula a alocação sem persistir
// @Summary      Simula alocação
// @Tags         allocations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body allocation.RawRequest true "Tarefas e total de minutos"
// @Success      200 {object} model.Response
// @Failure      400 {object} model.ErrorResponse
// @Failure      422 {object} model.ErrorResponse
// @Router       /api/v1/allocations/preview [post]
func (h *AllocationHandler) PreviewAllocation(c *gin.Context) {
	var raw allocation.RawRequest
	if err := c.ShouldBindJSON(&raw); err != nil {
		invalidPayload(c, err)
		return
	}

	preview, err := h.service.Preview(c.Request.Context(), raw)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    preview,
	})
}

// ListAllocations lista as alocações mais recentes
// @Summary      Lista alocações
// @Tags         allocations
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Quantidade máxima de itens"
// @Success      200 {object} model.Response
// @Failure      400 {object} model.ErrorResponse
// @Router       /api/v1/allocations [get]
func (h *AllocationHandler) ListAllocations(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{
				Success: false,
				Error:   "limit deve ser um inteiro positivo",
				Code:    "INVALID_LIMIT",
			})
			return
		}
		limit = parsed
	}

	summaries, err := h.service.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    summaries,
		Meta: &model.Meta{
			Total: len(summaries),
			Limit: limit,
		},
	})
}

// GetAllocation retorna uma alocação armazenada
// @Summary      Busca alocação
// @Tags         allocations
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "ID da alocação"
// @Success      200 {object} model.Response
// @Failure      404 {object} model.ErrorResponse
// @Router       /api/v1/allocations/{id} [get]
func (h *AllocationHandler) GetAllocation(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    record,
	})
}

// ExportAllocation devolve a alocação como planilha Excel
// @Summary      Exporta alocação
// @Tags         allocations
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Param        id path string true "ID da alocação"
// @Success      200 {file} binary
// @Failure      404 {object} model.ErrorResponse
// @Router       /api/v1/allocations/{id}/export [get]
func (h *AllocationHandler) ExportAllocation(c *gin.Context) {
	buf, filename, err := h.service.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Header("Content-Length", fmt.Sprintf("%d", buf.Len()))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// DeleteAllocation remove uma alocação
// @Summary      Remove alocação
// @Tags         allocations
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "ID da alocação"
// @Success      200 {object} model.Response
// @Failure      404 {object} model.ErrorResponse
// @Router       /api/v1/allocations/{id} [delete]
func (h *AllocationHandler) DeleteAllocation(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data:    gin.H{"request_id": id},
	})
}

func invalidPayload(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Success: false,
		Error:   "payload inválido",
		Code:    "INVALID_JSON",
		Details: err.Error(),
	})
}

// respondError converte erros do serviço no status HTTP correspondente
func respondError(c *gin.Context, err error) {
	var allocErr *allocation.Error
	switch {
	case errors.As(err, &allocErr):
		status, code := http.StatusBadRequest, "INVALID_INPUT"
		if allocErr.Kind == allocation.KindInfeasible {
			status, code = http.StatusUnprocessableEntity, "INFEASIBLE"
		}
		c.JSON(status, model.ErrorResponse{
			Success:    false,
			Error:      allocErr.Error(),
			Code:       code,
			Violations: allocErr.Violations,
		})
	case errors.Is(err, model.ErrAllocationNotFound):
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Error:   "alocação não encontrada",
			Code:    "NOT_FOUND",
		})
	case errors.Is(err, model.ErrInvalidID):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Error:   "id de alocação inválido",
			Code:    "INVALID_ID",
		})
	default:
		logger.FromGin(c).Error().Err(err).Msg("Erro interno ao processar alocação")
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Error:   "erro interno",
			Code:    "INTERNAL_ERROR",
		})
	}
}
