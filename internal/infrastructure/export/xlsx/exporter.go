// Package xlsx writes the asset register of a diagram as a spreadsheet.
package xlsx

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
)

const (
	assetsSheet  = "Assets"
	diagramSheet = "Diagram"
	contentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var assetHeader = []any{"Tag", "Type", "X", "Y", "Verified", "Asset ID"}

type Exporter struct{}

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) ContentType() string { return contentType }

func (e *Exporter) Export(diagram *domain.Diagram, assets []domain.Asset) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", assetsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeAssets(f, assets); err != nil {
		return nil, err
	}
	if err := writeDiagram(f, diagram, len(assets)); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeAssets(f *excelize.File, assets []domain.Asset) error {
	if err := f.SetSheetRow(assetsSheet, "A1", &assetHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(assetsSheet, "A1", "F1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, a := range assets {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		row := []any{a.Tag, a.Type, a.Coordinates.X, a.Coordinates.Y, a.Verified, a.ID}
		if err := f.SetSheetRow(assetsSheet, cell, &row); err != nil {
			return fmt.Errorf("write asset row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(assetsSheet, "A", "B", 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return f.SetColWidth(assetsSheet, "F", "F", 38)
}

func writeDiagram(f *excelize.File, diagram *domain.Diagram, assetCount int) error {
	if _, err := f.NewSheet(diagramSheet); err != nil {
		return fmt.Errorf("create diagram sheet: %w", err)
	}
	rows := [][]any{
		{"Diagram ID", diagram.ID},
		{"Filename", diagram.Filename},
		{"Owner", diagram.UserID},
		{"Status", string(diagram.Status)},
		{"Assets", strconv.Itoa(assetCount)},
		{"Uploaded", diagram.CreatedAt.Format("2006-01-02 15:04:05Z07:00")},
	}
	for i, row := range rows {
		if err := f.SetSheetRow(diagramSheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return fmt.Errorf("write diagram row: %w", err)
		}
	}
	return nil
}
