package service

import (
	"bytes"
	"fmt"

	"github.com/cleberrangel/minute-allocation-api/internal/allocation"
	"github.com/cleberrangel/minute-allocation-api/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	sheetName    = "Alocação"
	summarySheet = "Resumo"
)

var exportHeaders = []string{"Tarefa", "Proporção", "Participação (%)", "Minutos alocados", "Mínimo", "Máximo"}

// ExcelGenerator gera planilhas de alocações
type ExcelGenerator struct{}

// NewExcelGenerator cria um novo gerador de Excel
func NewExcelGenerator() *ExcelGenerator {
	return &ExcelGenerator{}
}

// ExportFileName é o nome do arquivo baixado para uma alocação
func ExportFileName(record *model.AllocationRecord) string {
	return fmt.Sprintf("alocacao_%s.xlsx", record.RequestID)
}

// Generate gera um arquivo Excel com uma linha por tarefa e uma aba de resumo
func (g *ExcelGenerator) Generate(record *model.AllocationRecord) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, sheetName); err != nil {
		return nil, fmt.Errorf("renomear sheet: %w", err)
	}

	if err := g.writeHeaders(f); err != nil {
		return nil, fmt.Errorf("escrever headers: %w", err)
	}

	if err := g.writeData(f, record.Allocations); err != nil {
		return nil, fmt.Errorf("escrever dados: %w", err)
	}

	if err := g.writeSummary(f, record); err != nil {
		return nil, fmt.Errorf("escrever resumo: %w", err)
	}

	for col := 1; col <= len(exportHeaders); col++ {
		colName, _ := excelize.ColumnNumberToName(col)
		if err := f.SetColWidth(sheetName, colName, colName, 20); err != nil {
			return nil, fmt.Errorf("ajustar colunas: %w", err)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("escrever buffer: %w", err)
	}

	return buf, nil
}

func (g *ExcelGenerator) writeHeaders(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:  true,
			Size:  11,
			Color: "FFFFFF",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"4472C4"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return err
	}

	for col, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, cell, cell, style); err != nil {
			return err
		}
	}

	return f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// writeData escreve uma linha por tarefa e a linha de total
func (g *ExcelGenerator) writeData(f *excelize.File, results []allocation.Result) error {
	ratioSum := 0.0
	for _, r := range results {
		ratioSum += r.Ratio
	}

	percentStyle, err := f.NewStyle(&excelize.Style{NumFmt: 10}) // 0.00%
	if err != nil {
		return err
	}

	for i, r := range results {
		row := i + 2 // Linha 1 é header

		share := 0.0
		if ratioSum > 0 {
			share = r.Ratio / ratioSum
		}

		values := []interface{}{r.TaskID, r.Ratio, share, r.AllocatedMinutes, optionalInt(r.MinMinutes), optionalInt(r.MaxMinutes)}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return err
		}

		shareCell, _ := excelize.CoordinatesToCellName(3, row)
		if err := f.SetCellStyle(sheetName, shareCell, shareCell, percentStyle); err != nil {
			return err
		}
	}

	totalRow := len(results) + 2
	label, _ := excelize.CoordinatesToCellName(1, totalRow)
	if err := f.SetCellValue(sheetName, label, "Total"); err != nil {
		return err
	}
	totalCell, _ := excelize.CoordinatesToCellName(4, totalRow)
	formula := fmt.Sprintf("SUM(D2:D%d)", totalRow-1)
	return f.SetCellFormula(sheetName, totalCell, formula)
}

func (g *ExcelGenerator) writeSummary(f *excelize.File, record *model.AllocationRecord) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"request_id", record.RequestID},
		{"total_minutes", record.TotalMinutes},
		{"tarefas", len(record.Allocations)},
		{"criado_em", record.CreatedAt.UTC().Format("2006-01-02 15:04:05")},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "B", 40)
}

func optionalInt(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
