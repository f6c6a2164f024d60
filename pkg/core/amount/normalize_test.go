package amount

import (
	"testing"

	"github.com/shopspring/decimal"
)

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestNormalize_SameMagnitudeDifferentNoise(t *testing.T) {
	tests := []struct {
		name  string
		input Value
		want  string
	}{
		{"Thousands separator", Text("1,234"), "1234"},
		{"No-break space", Text("1\u00a0234"), "1234"},
		{"Won symbol", Text("₩1,234"), "1234"},
		{"Won name suffix", Text("1,234원"), "1234"},
		{"Zero width between digits", Text("1\u200b2\u200c3\u200d4"), "1234"},
		{"BOM prefix", Text("\ufeff1,234"), "1234"},
		{"Thin and hair spaces", Text("1\u2009234\u200a"), "1234"},
		{"Soft hyphen", Text("12\u00ad34"), "1234"},
		{"Plain ascii space", Text(" 1 234 "), "1234"},
		{"Leading plus", Text("+1,234"), "1234"},
		{"Parenthesized negative", Text("(1234)"), "-1234"},
		{"Parenthesized with separators", Text("(1,234)"), "-1234"},
		{"White triangle", Text("△1234"), "-1234"},
		{"Black triangle with space", Text("▲ 1,234"), "-1234"},
		{"Unicode minus", Text("\u22121234"), "-1234"},
		{"En dash", Text("\u20131234"), "-1234"},
		{"Em dash", Text("\u20141234"), "-1234"},
		{"Non-breaking hyphen", Text("\u20111234"), "-1234"},
		{"Decimal kept", Text("1,234.56"), "1234.56"},
		{"Stray symbols dropped", Text("1,234*"), "1234"},
		{"Nested parens filtered", Text("((1234))"), "1234"},
		{"Full-width digits", Text("１,２３４"), "1234"},
		{"Full-width comma", Text("１，２３４"), "1234"},
		{"Full-width parentheses", Text("（１，２３４）"), "-1234"},
		{"Full-width hyphen-minus", Text("－１２３４"), "-1234"},
		{"Full-width won sign", Text("￦１,２３４"), "1234"},
		{"Ideographic space", Text("1\u3000234"), "1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if !got.Valid {
				t.Fatalf("Normalize(%q) = missing, want %s", tt.input.Text, tt.want)
			}
			if !got.Decimal.Equal(mustDec(t, tt.want)) {
				t.Errorf("Normalize(%q) = %s, want %s", tt.input.Text, got, tt.want)
			}
		})
	}
}

func TestNormalize_MissingInputs(t *testing.T) {
	tests := []struct {
		name  string
		input Value
	}{
		{"Null", Missing()},
		{"Empty", Text("")},
		{"Whitespace", Text("  \u00a0 ")},
		{"Single dash", Text("-")},
		{"Double dash", Text("--")},
		{"Plus only", Text("+")},
		{"Symbols only", Text("N/A-only-symbols")},
		{"Won only", Text("₩")},
		{"Currency and separators", Text("₩,,원")},
		{"Triangle only", Text("△")},
		{"Triangle and space", Text("▲  ")},
		{"Two decimal points", Text("1.2.3")},
		{"NaN float", Float(nanValue())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got.Valid {
				t.Errorf("Normalize(%v) = %s, want missing", tt.input, got)
			}
		})
	}
}

func TestNormalize_NumericPassThrough(t *testing.T) {
	got := Normalize(Int(42))
	if !got.Valid || got.Float64() != 42.0 {
		t.Fatalf("Normalize(42) = %v, want 42", got)
	}

	got = Normalize(Float(-12.5))
	if !got.Valid || got.Float64() != -12.5 {
		t.Fatalf("Normalize(-12.5) = %v, want -12.5", got)
	}
}

func TestNormalize_Examples(t *testing.T) {
	tests := []struct {
		input Value
		want  float64
		valid bool
	}{
		{Text("1,234,567"), 1234567.0, true},
		{Text("(500)"), -500.0, true},
		{Text("△300"), -300.0, true},
		{Text("-"), 0, false},
		{Int(42), 42.0, true},
	}

	for _, tt := range tests {
		got := Normalize(tt.input)
		if got.Valid != tt.valid {
			t.Errorf("Normalize(%v).Valid = %v, want %v", tt.input, got.Valid, tt.valid)
			continue
		}
		if tt.valid && got.Float64() != tt.want {
			t.Errorf("Normalize(%v) = %v, want %v", tt.input, got.Float64(), tt.want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []Value{
		Text("1,234,567"), Text("(500)"), Text("△300"), Text("-"), Text("₩"),
		Text("1,234.50"), Text("0.000"), Text("-0"), Text("+7"), Text("▲ 12.25"),
		Int(42), Float(-3.75), Missing(), Text("12-"),
	}

	for _, in := range inputs {
		first := Normalize(in)
		second := Normalize(Text(first.String()))
		if !first.Equal(second) {
			t.Errorf("not idempotent for %v: %q then %q", in, first, second)
		}
	}
}

func TestIsAmountColumn(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"thstrm_amount", true},
		{"THSTRM_AMOUNT", true},
		{"frmtrm_add_amount", true},
		{"Am\u200bount", true},
		{"\ufeffamount", true},
		{"account_nm", false},
		{"query_year", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsAmountColumn(tt.name); got != tt.want {
			t.Errorf("IsAmountColumn(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

type wonAmount float64

type accountName string

func TestOf_NativeNumbersStayNumeric(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"int32", int32(-42), "-42"},
		{"int8", int8(7), "7"},
		{"uint8", uint8(255), "255"},
		{"uint32", uint32(4000000000), "4000000000"},
		{"uint64 max", uint64(18446744073709551615), "18446744073709551615"},
		{"named float", wonAmount(1234.5), "1234.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Of(tt.input)
			if v.Kind != KindNumber {
				t.Fatalf("Of(%v) kind = %s, want number", tt.input, v.Kind)
			}
			if !v.Num.Equal(mustDec(t, tt.want)) {
				t.Errorf("Of(%v) = %s, want %s", tt.input, v.Num, tt.want)
			}
		})
	}

	if v := Of(accountName("매출액")); v.Kind != KindText || v.Text != "매출액" {
		t.Errorf("named string = %+v, want text", v)
	}
	if v := Of(wonAmount(nanValue())); !v.IsMissing() {
		t.Errorf("named NaN = %+v, want missing", v)
	}
}

func TestValueJSON(t *testing.T) {
	for _, v := range []Value{Missing(), Int(-5), Text("abc")} {
		data, err := v.MarshalJSON()
		if err != nil {
			t.Fatalf("marshal %v: %v", v, err)
		}
		var back Value
		if err := back.UnmarshalJSON(data); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back.Kind != v.Kind || back.String() != v.String() {
			t.Errorf("round trip %v -> %s -> %v", v, data, back)
		}
	}
}

func nanValue() float64 {
	zero := 0.0
	return zero / zero
}
