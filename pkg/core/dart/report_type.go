package dart

import (
	"fmt"
	"strings"
)

// ReportType selects the periodic report a statement is taken from.
type ReportType string

const (
	ReportAnnual       ReportType = "annual"
	ReportSemiAnnual   ReportType = "semi-annual"
	ReportThirdQuarter ReportType = "third-quarter"
	ReportFirstQuarter ReportType = "first-quarter"
)

var reportCodes = map[ReportType]string{
	ReportAnnual:       "11011", // 사업보고서
	ReportSemiAnnual:   "11012", // 반기보고서
	ReportThirdQuarter: "11014", // 3분기보고서
	ReportFirstQuarter: "11013", // 1분기보고서
}

var reportLabels = map[ReportType]string{
	ReportAnnual:       "사업보고서",
	ReportSemiAnnual:   "반기보고서",
	ReportThirdQuarter: "3분기보고서",
	ReportFirstQuarter: "1분기보고서",
}

// ReportTypes lists the supported types in display order.
func ReportTypes() []ReportType {
	return []ReportType{ReportAnnual, ReportSemiAnnual, ReportThirdQuarter, ReportFirstQuarter}
}

// Code is the reprt_code sent to OpenDART.
func (r ReportType) Code() string { return reportCodes[r] }

// Label is the Korean report name.
func (r ReportType) Label() string { return reportLabels[r] }

func (r ReportType) Valid() bool {
	_, ok := reportCodes[r]
	return ok
}

// ParseReportType accepts a type name, its reprt_code, or its Korean label.
func ParseReportType(s string) (ReportType, error) {
	s = strings.TrimSpace(s)
	for _, r := range ReportTypes() {
		if strings.EqualFold(s, string(r)) || s == r.Code() || s == r.Label() {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown report type %q", s)
}
