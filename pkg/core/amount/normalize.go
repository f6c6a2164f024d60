package amount

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/width"
)

// Amount is a canonical monetary value. Valid=false is the missing marker.
type Amount struct {
	Valid   bool
	Decimal decimal.Decimal
}

// String renders the canonical text form; feeding it back to ParseText yields the same Amount.
func (a Amount) String() string {
	if !a.Valid {
		return ""
	}
	return a.Decimal.String()
}

func (a Amount) Float64() float64 {
	f, _ := a.Decimal.Float64()
	return f
}

// Value converts the amount back into a cell value (Number or Missing).
func (a Amount) Value() Value {
	if !a.Valid {
		return Missing()
	}
	return Number(a.Decimal)
}

// Equal compares by numeric value, so 1234.50 equals 1234.5.
func (a Amount) Equal(b Amount) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

var (
	// Zero-width, no-break and thin spaces plus the soft hyphen. These show up between
	// digits in copy-pasted filings and must go before anything else looks at the text.
	invisible = strings.NewReplacer(
		"\u200b", "", // zero width space
		"\u200c", "", // zero width non-joiner
		"\u200d", "", // zero width joiner
		"\u2060", "", // word joiner
		"\u00a0", "", // no-break space
		"\ufeff", "", // BOM
		"\u202f", "", // narrow no-break space
		"\u2009", "", // thin space
		"\u200a", "", // hair space
		"\u2007", "", // figure space
		"\u00ad", "", // soft hyphen
	)

	currencyNoise = strings.NewReplacer(",", "", "₩", "", "원", "")

	dashes = strings.NewReplacer(
		"\u2212", "-", // minus sign
		"\u2013", "-", // en dash
		"\u2014", "-", // em dash
		"\u2011", "-", // non-breaking hyphen
	)

	// △ and ▲ mark negative amounts in Korean statements.
	leadingTriangle = regexp.MustCompile(`^[△▲]\s*`)
)

// StripInvisible removes the invisible and format characters listed above.
func StripInvisible(s string) string {
	return invisible.Replace(s)
}

// IsAmountColumn reports whether a column holds monetary amounts: its name contains
// "amount", case-insensitively, once invisible characters are removed.
func IsAmountColumn(name string) bool {
	return strings.Contains(strings.ToLower(StripInvisible(name)), "amount")
}

// Normalize maps any cell to a canonical amount. It never fails: anything that
// cannot be read as a number becomes the missing marker.
func Normalize(v Value) Amount {
	switch v.Kind {
	case KindMissing:
		return Amount{}
	case KindNumber:
		return Amount{Valid: true, Decimal: v.Num}
	case KindText:
		return ParseText(v.Text)
	}
	return Amount{}
}

// ParseText applies the text rules of Normalize to a raw string. Full-width forms
// (１２３, ，, －, （）, ￦) are folded to their ASCII counterparts first.
func ParseText(s string) Amount {
	s = width.Narrow.String(StripInvisible(s))
	s = strings.TrimSpace(currencyNoise.Replace(s))
	s = dashes.Replace(s)
	s = leadingTriangle.ReplaceAllString(s, "-")
	if isParenthesized(s) {
		s = "-" + strings.TrimSpace(s[1:len(s)-1])
	}
	s = strings.TrimPrefix(s, "+")
	s = strings.Map(keepNumeric, s)

	switch s {
	case "", "-", "--", "+":
		return Amount{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}
	}
	return Amount{Valid: true, Decimal: d}
}

// isParenthesized is true for "(...)" where the outer pair is the only pair.
func isParenthesized(s string) bool {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return false
	}
	inner := s[1 : len(s)-1]
	return !strings.ContainsAny(inner, "()")
}

func keepNumeric(r rune) rune {
	switch {
	case r >= '0' && r <= '9', r == '-', r == '+', r == '.':
		return r
	}
	return -1
}
