// Package dataset holds the tabular records collected from the disclosure feed.
package dataset

import (
	"encoding/json"
	"fmt"
	"sort"

	"dart_finstate/pkg/core/amount"
)

// Row maps column name to cell. Absent columns read as Missing.
type Row map[string]amount.Value

// Dataset is an ordered set of named columns over ordered rows.
type Dataset struct {
	columns []string
	index   map[string]int
	rows    []Row
}

// New creates an empty dataset with the given columns.
func New(columns ...string) *Dataset {
	d := &Dataset{index: make(map[string]int)}
	for _, c := range columns {
		d.AddColumn(c)
	}
	return d
}

// AddColumn appends a column if it is not already declared. Existing rows read it as Missing.
func (d *Dataset) AddColumn(name string) bool {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if _, ok := d.index[name]; ok {
		return false
	}
	d.index[name] = len(d.columns)
	d.columns = append(d.columns, name)
	return true
}

// Columns returns a copy of the column names in order.
func (d *Dataset) Columns() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Len is the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rows)
}

func (d *Dataset) Empty() bool { return d.Len() == 0 }

// Append adds a row. Columns the dataset has not seen yet are declared in sorted
// order so that the resulting layout does not depend on map iteration.
func (d *Dataset) Append(r Row) {
	var unseen []string
	for k := range r {
		if !d.HasColumn(k) {
			unseen = append(unseen, k)
		}
	}
	sort.Strings(unseen)
	for _, k := range unseen {
		d.AddColumn(k)
	}

	row := make(Row, len(r))
	for k, v := range r {
		row[k] = v
	}
	d.rows = append(d.rows, row)
}

// Get returns the cell at row i, column col.
func (d *Dataset) Get(i int, col string) amount.Value {
	v, ok := d.rows[i][col]
	if !ok {
		return amount.Missing()
	}
	return v
}

// Set overwrites one cell, declaring the column if needed.
func (d *Dataset) Set(i int, col string, v amount.Value) {
	d.AddColumn(col)
	d.rows[i][col] = v
}

// Clone returns a copy that shares no rows or column slices with d.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	out := New(d.columns...)
	out.rows = make([]Row, len(d.rows))
	for i, r := range d.rows {
		row := make(Row, len(r))
		for k, v := range r {
			row[k] = v
		}
		out.rows[i] = row
	}
	return out
}

// Tag sets col to v on every row. Used to stamp provenance onto a fetch result.
func (d *Dataset) Tag(col string, v amount.Value) {
	d.AddColumn(col)
	for _, r := range d.rows {
		r[col] = v
	}
}

// AmountColumns lists the columns recognised by amount.IsAmountColumn.
func (d *Dataset) AmountColumns() []string {
	var cols []string
	for _, c := range d.columns {
		if amount.IsAmountColumn(c) {
			cols = append(cols, c)
		}
	}
	return cols
}

// NormalizeAmounts replaces every cell of cols with its canonical amount and returns
// how many non-empty cells could not be read as numbers.
func (d *Dataset) NormalizeAmounts(cols []string) int {
	unparseable := 0
	for _, col := range cols {
		for i := range d.rows {
			v := d.Get(i, col)
			a := amount.Normalize(v)
			if !a.Valid && v.Kind == amount.KindText && v.Text != "" {
				unparseable++
			}
			d.rows[i][col] = a.Value()
		}
	}
	return unparseable
}

// Concat stacks datasets. Columns are the union in first-seen order and every row
// gets an explicit Missing for the columns its source did not have.
func Concat(parts ...*Dataset) *Dataset {
	out := New()
	for _, p := range parts {
		if p == nil {
			continue
		}
		for _, c := range p.columns {
			out.AddColumn(c)
		}
	}
	for _, p := range parts {
		if p == nil {
			continue
		}
		for i := range p.rows {
			row := make(Row, len(out.columns))
			for _, c := range out.columns {
				row[c] = p.Get(i, c)
			}
			out.rows = append(out.rows, row)
		}
	}
	return out
}

type wireDataset struct {
	Columns []string         `json:"columns"`
	Rows    [][]amount.Value `json:"rows"`
}

// MarshalJSON stores rows positionally against the column list.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	w := wireDataset{Columns: d.Columns(), Rows: make([][]amount.Value, 0, d.Len())}
	for i := range d.rows {
		cells := make([]amount.Value, len(d.columns))
		for j, c := range d.columns {
			cells[j] = d.Get(i, c)
		}
		w.Rows = append(w.Rows, cells)
	}
	return json.Marshal(w)
}

func (d *Dataset) UnmarshalJSON(data []byte) error {
	var w wireDataset
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*d = *New(w.Columns...)
	for n, cells := range w.Rows {
		if len(cells) != len(w.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", n, len(cells), len(w.Columns))
		}
		row := make(Row, len(cells))
		for j, c := range w.Columns {
			row[c] = cells[j]
		}
		d.rows = append(d.rows, row)
	}
	return nil
}
