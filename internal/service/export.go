package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"order-workflow/internal/apperror"
	"order-workflow/internal/model"
	"order-workflow/internal/repository"
	"order-workflow/internal/workflow"

	"github.com/xuri/excelize/v2"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const sheetName = "Pedido"

// ExportFile は書き出した注文ファイル
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService は注文の書き出しサービス
type ExportService interface {
	Export(ctx context.Context, orderID, format string) (*ExportFile, error)
}

type exportServiceImpl struct {
	store repository.Store
}

// NewExportService は新しい書き出しサービスを作成
func NewExportService(store repository.Store) ExportService {
	return &exportServiceImpl{store: store}
}

// Export は注文（完了済みなら履歴）をCSVまたはXLSXで返す
func (s *exportServiceImpl) Export(ctx context.Context, orderID, format string) (*ExportFile, error) {
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatXLSX {
		return nil, apperror.Newf(apperror.KindValidation, "formato %q no soportado", format)
	}

	order, archived, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	rows := orderRows(order, archived)

	if format == FormatXLSX {
		data, err := writeXLSX(rows)
		if err != nil {
			return nil, err
		}
		return &ExportFile{
			Filename:    order.Code + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	}

	data, err := writeCSV(rows)
	if err != nil {
		return nil, err
	}
	return &ExportFile{
		Filename:    order.Code + ".csv",
		ContentType: "text/csv; charset=utf-8",
		Data:        data,
	}, nil
}

func (s *exportServiceImpl) load(ctx context.Context, orderID string) (*model.Order, bool, error) {
	order, err := s.store.Orders().Get(ctx, orderID)
	if err == nil {
		return order, false, nil
	}
	if !apperror.IsKind(err, apperror.KindNotFound) {
		return nil, false, err
	}
	record, herr := s.store.History().GetByOrder(ctx, orderID)
	if herr != nil {
		return nil, false, err
	}
	order, err = record.AsOrder()
	return order, true, err
}

func orderRows(o *model.Order, archived bool) [][]string {
	stage := workflow.StageLabel(o.Stage)
	if archived {
		stage = workflow.HistoryLabel
	}
	priority := string(o.Priority)
	if meta, ok := workflow.PriorityInfo(o.Priority); ok {
		priority = meta.Label
	}
	rows := [][]string{
		{"Código", o.Code},
		{"Cliente", o.Client},
		{"Dirección", o.Address},
		{"Teléfono", o.Phone},
		{"Descripción", o.Description},
		{"Prioridad", priority},
		{"Estado", stage},
		{"Transportista", o.AssignedName},
		{"Notas", o.Notes},
		{"Creado por", o.CreatedBy},
		{"Fecha de creación", o.CreatedAt.Format("2006-01-02 15:04")},
		{},
		{"Producto", "Cantidad solicitada", "Unidad", "Cantidad preparada"},
	}
	for _, p := range o.Products {
		prepared := ""
		if p.PreparedQty.Valid {
			prepared = p.PreparedQty.Decimal.String()
		}
		rows = append(rows, []string{p.Name, p.RequestedQty.String(), string(p.Unit), prepared})
	}
	return rows
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	// BOM so spreadsheet apps detect UTF-8
	buf.WriteString("\ufeff")
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func writeXLSX(rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(sheetName, "A", "D", 22); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
