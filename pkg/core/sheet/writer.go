// Package sheet writes collected datasets to xlsx files with amount columns stored
// as real numeric cells.
package sheet

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"dart_finstate/pkg/core/amount"
	"dart_finstate/pkg/core/dataset"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	DefaultSheetName = "finstate"

	// AmountNumFmt is the built-in number format 3, "#,##0".
	AmountNumFmt = 3
)

var (
	// ErrWrite marks failures to create or save the artifact.
	ErrWrite = errors.New("spreadsheet write failed")
	// ErrCellType marks a cell whose kind the writer has no cell operation for.
	ErrCellType = errors.New("unsupported cell value")
)

// IrreparableCell is an amount cell that is still text after the repair pass.
type IrreparableCell struct {
	Cell   string `json:"cell"`
	Column string `json:"column"`
	Row    int    `json:"row"`
	Text   string `json:"text"`
}

// Report describes one written artifact.
type Report struct {
	Path        string            `json:"path"`
	Rows        int               `json:"rows"`
	Columns     int               `json:"columns"`
	Repaired    int               `json:"repaired"`
	Irreparable []IrreparableCell `json:"irreparable,omitempty"`
}

// Writer renders a dataset into a single-sheet workbook.
type Writer struct {
	SheetName  string
	AutoFilter bool
	logger     *zap.Logger

	// openFile reopens the saved workbook for the repair pass; nil means excelize.OpenFile.
	openFile func(path string) (*excelize.File, error)
}

// NewWriter returns a writer with the default sheet name and autofilter enabled.
func NewWriter(logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{SheetName: DefaultSheetName, AutoFilter: true, logger: logger}
}

func (w *Writer) sheetName() string {
	if w.SheetName == "" {
		return DefaultSheetName
	}
	return w.SheetName
}

// Write creates (or overwrites) path. The file is written and closed first, then
// reopened so that any amount cell still stored as text can be converted in place.
// Callers are expected to have normalized amountCols beforehand.
func (w *Writer) Write(path string, ds *dataset.Dataset, amountCols []string) (*Report, error) {
	if ds == nil {
		ds = dataset.New()
	}
	isAmount := make(map[string]bool, len(amountCols))
	for _, c := range amountCols {
		isAmount[c] = true
	}

	if err := w.writePrimary(path, ds, isAmount); err != nil {
		os.Remove(path)
		return nil, err
	}

	rep := &Report{Path: path, Rows: ds.Len(), Columns: len(ds.Columns())}
	if err := w.repair(path, ds.Columns(), ds.Len(), isAmount, rep); err != nil {
		os.Remove(path)
		return nil, err
	}

	w.logger.Info("spreadsheet written",
		zap.String("path", path),
		zap.Int("rows", rep.Rows),
		zap.Int("repaired", rep.Repaired),
		zap.Int("irreparable", len(rep.Irreparable)))
	return rep, nil
}

func (w *Writer) writePrimary(path string, ds *dataset.Dataset, isAmount map[string]bool) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := w.sheetName()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("%w: rename sheet: %w", ErrWrite, err)
	}
	style, err := f.NewStyle(&excelize.Style{NumFmt: AmountNumFmt})
	if err != nil {
		return fmt.Errorf("%w: amount style: %w", ErrWrite, err)
	}

	cols := ds.Columns()
	for c, name := range cols {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellStr(sheet, cell, name); err != nil {
			return fmt.Errorf("%w: header %s: %w", ErrWrite, cell, err)
		}
	}

	for r := 0; r < ds.Len(); r++ {
		for c, name := range cols {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := w.writeCell(f, sheet, cell, name, ds.Get(r, name), isAmount[name]); err != nil {
				return err
			}
		}
	}

	for c, name := range cols {
		if !isAmount[name] {
			continue
		}
		if err := applyAmountStyle(f, sheet, c+1, ds.Len(), style); err != nil {
			return fmt.Errorf("%w: style %s: %w", ErrWrite, name, err)
		}
	}

	if w.AutoFilter && len(cols) > 0 && ds.Len() > 0 {
		last, _ := excelize.CoordinatesToCellName(len(cols), ds.Len()+1)
		if err := f.AutoFilter(sheet, "A1:"+last, nil); err != nil {
			return fmt.Errorf("%w: autofilter: %w", ErrWrite, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrWrite, path, err)
	}
	return nil
}

// writeCell dispatches on the value kind instead of using SetCellValue, whose type
// inference would happily store numbers as strings.
func (w *Writer) writeCell(f *excelize.File, sheet, cell, col string, v amount.Value, isAmount bool) error {
	var err error
	switch v.Kind {
	case amount.KindNumber:
		num, _ := v.Num.Float64()
		err = f.SetCellFloat(sheet, cell, num, -1, 64)
	case amount.KindMissing:
		err = f.SetCellDefault(sheet, cell, "")
	case amount.KindText:
		if isAmount && isBlank(v.Text) {
			err = f.SetCellDefault(sheet, cell, "")
			break
		}
		if isAmount {
			w.logger.Warn("text in amount column", zap.String("cell", cell), zap.String("column", col), zap.String("text", v.Text))
		}
		err = f.SetCellStr(sheet, cell, v.Text)
	default:
		return fmt.Errorf("%w: %s at %s (%s)", ErrCellType, v.Kind, cell, col)
	}
	if err != nil {
		return fmt.Errorf("%w: cell %s: %w", ErrWrite, cell, err)
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(amount.StripInvisible(s)) == ""
}

// applyAmountStyle formats the whole column, then puts the header back to the default style.
func applyAmountStyle(f *excelize.File, sheet string, col, rows, style int) error {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return err
	}
	if err := f.SetColStyle(sheet, name, style); err != nil {
		return err
	}
	if rows > 0 {
		top, _ := excelize.CoordinatesToCellName(col, 2)
		bottom, _ := excelize.CoordinatesToCellName(col, rows+1)
		if err := f.SetCellStyle(sheet, top, bottom, style); err != nil {
			return err
		}
	}
	header, _ := excelize.CoordinatesToCellName(col, 1)
	return f.SetCellStyle(sheet, header, header, 0)
}
