package sheet

import (
	"fmt"

	"dart_finstate/pkg/core/amount"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// repair reopens the saved workbook and converts amount cells that were stored as
// text. Cells that still do not parse are left untouched and reported.
func (w *Writer) repair(path string, cols []string, rows int, isAmount map[string]bool, rep *Report) error {
	f, err := w.reopen(path)
	if err != nil {
		return fmt.Errorf("%w: reopen %s: %w", ErrWrite, path, err)
	}
	defer f.Close()

	sheet := w.sheetName()
	style, err := f.NewStyle(&excelize.Style{NumFmt: AmountNumFmt})
	if err != nil {
		return fmt.Errorf("%w: amount style: %w", ErrWrite, err)
	}

	for c, name := range cols {
		if !isAmount[name] {
			continue
		}
		for r := 2; r <= rows+1; r++ {
			cell, _ := excelize.CoordinatesToCellName(c+1, r)
			typ, err := f.GetCellType(sheet, cell)
			if err != nil {
				return fmt.Errorf("%w: inspect %s: %w", ErrWrite, cell, err)
			}
			if !isTextCell(typ) {
				continue
			}

			raw, err := f.GetCellValue(sheet, cell)
			if err != nil {
				return fmt.Errorf("%w: read %s: %w", ErrWrite, cell, err)
			}
			if isBlank(raw) {
				continue
			}
			a := amount.ParseText(raw)
			if !a.Valid {
				w.logger.Warn("amount cell left as text",
					zap.String("cell", cell), zap.String("column", name), zap.String("text", raw))
				rep.Irreparable = append(rep.Irreparable, IrreparableCell{Cell: cell, Column: name, Row: r, Text: raw})
				continue
			}

			if err := f.SetCellFloat(sheet, cell, a.Float64(), -1, 64); err != nil {
				return fmt.Errorf("%w: repair %s: %w", ErrWrite, cell, err)
			}
			if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
				return fmt.Errorf("%w: repair style %s: %w", ErrWrite, cell, err)
			}
			rep.Repaired++
		}
	}

	if rep.Repaired == 0 {
		return nil
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("%w: save repaired %s: %w", ErrWrite, path, err)
	}
	return nil
}

func (w *Writer) reopen(path string) (*excelize.File, error) {
	if w.openFile != nil {
		return w.openFile(path)
	}
	return excelize.OpenFile(path)
}

func isTextCell(t excelize.CellType) bool {
	return t == excelize.CellTypeSharedString || t == excelize.CellTypeInlineString
}

// CellInfo is what Inspect reports for one cell.
type CellInfo struct {
	Cell   string
	Type   excelize.CellType
	NumFmt int
	Raw    string
}

// IsText reports whether the cell is stored as a string.
func (c CellInfo) IsText() bool { return isTextCell(c.Type) }

// Inspect reads back rows data cells of one column (1-based, header excluded).
// Rows are addressed directly, so trailing blank records are reported too.
func Inspect(path, sheet string, col, rows int) ([]CellInfo, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}

	out := make([]CellInfo, 0, rows)
	for r := 2; r <= rows+1; r++ {
		cell, _ := excelize.CoordinatesToCellName(col, r)
		typ, err := f.GetCellType(sheet, cell)
		if err != nil {
			return nil, err
		}
		raw, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, err
		}
		info := CellInfo{Cell: cell, Type: typ, Raw: raw}
		if styleID, err := f.GetCellStyle(sheet, cell); err == nil && styleID != 0 {
			if st, err := f.GetStyle(styleID); err == nil {
				info.NumFmt = st.NumFmt
			}
		}
		out = append(out, info)
	}
	return out, nil
}
