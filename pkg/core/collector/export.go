package collector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dart_finstate/pkg/core/sheet"

	"go.uber.org/zap"
)

// Export is a run plus the artifact written from it.
type Export struct {
	Result *Result       `json:"result"`
	Path   string        `json:"path,omitempty"`
	Sheet  *sheet.Report `json:"sheet,omitempty"`
}

// Delivered reports whether a spreadsheet was produced.
func (e *Export) Delivered() bool { return e.Path != "" }

// Export runs the request and writes the spreadsheet into outDir. When no unit
// produced rows nothing is written and Path stays empty. A write failure is returned
// as an error and aborts the run.
func (c *Collector) Export(ctx context.Context, req Request, outDir string, w *sheet.Writer) (*Export, error) {
	res, err := c.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	exp := &Export{Result: res}
	if res.Dataset.Empty() {
		c.logger.Info("nothing collected, no spreadsheet written", zap.String("run_id", res.RunID))
		return exp, nil
	}

	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return exp, fmt.Errorf("%w: create %s: %w", sheet.ErrWrite, outDir, err)
	}
	if w == nil {
		w = sheet.NewWriter(c.logger)
	}

	path := filepath.Join(outDir, ArtifactName(req.Years))
	rep, err := w.Write(path, res.Dataset, res.AmountColumns)
	if err != nil {
		return exp, err
	}
	exp.Path, exp.Sheet = path, rep
	return exp, nil
}
