// Package amount turns the loosely formatted monetary text found in disclosure feeds
// into canonical decimal values.
package amount

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"

	"github.com/shopspring/decimal"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindMissing Kind = iota
	KindNumber
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is one cell as received from the data source: missing, a number, or text.
type Value struct {
	Kind Kind
	Num  decimal.Decimal
	Text string
}

// Missing returns the empty cell.
func Missing() Value { return Value{Kind: KindMissing} }

// Number wraps a decimal.
func Number(d decimal.Decimal) Value { return Value{Kind: KindNumber, Num: d} }

// Int wraps an integer.
func Int(i int64) Value { return Number(decimal.NewFromInt(i)) }

// Float wraps a float64. NaN and infinities become Missing.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Missing()
	}
	return Number(decimal.NewFromFloat(f))
}

// Text wraps a string as-is.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Of converts a decoded JSON value (or any plain Go scalar) into a Value.
func Of(v any) Value {
	switch x := v.(type) {
	case nil:
		return Missing()
	case Value:
		return x
	case string:
		return Text(x)
	case float64:
		return Float(x)
	case float32:
		return Float(float64(x))
	case int:
		return Int(int64(x))
	case int64:
		return Int(x)
	case json.Number:
		if d, err := decimal.NewFromString(x.String()); err == nil {
			return Number(d)
		}
		return Text(x.String())
	case decimal.Decimal:
		return Number(x)
	}

	// Remaining native numbers and named scalar types.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Number(decimal.NewFromBigInt(new(big.Int).SetUint64(rv.Uint()), 0))
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float())
	case reflect.String:
		return Text(rv.String())
	}
	return Text(fmt.Sprint(v))
}

func (v Value) IsMissing() bool { return v.Kind == KindMissing }

// String renders the value the way it would be typed into a cell.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return v.Num.String()
	case KindText:
		return v.Text
	}
	return ""
}

// MarshalJSON encodes Missing as null, numbers as {"n": "..."} and text as {"t": "..."}.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(struct {
			N string `json:"n"`
		}{v.Num.String()})
	case KindText:
		return json.Marshal(struct {
			T string `json:"t"`
		}{v.Text})
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Missing()
		return nil
	}
	var raw struct {
		N *string `json:"n"`
		T *string `json:"t"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode cell: %w", err)
	}
	switch {
	case raw.N != nil:
		d, err := decimal.NewFromString(*raw.N)
		if err != nil {
			return fmt.Errorf("decode cell number %q: %w", *raw.N, err)
		}
		*v = Number(d)
	case raw.T != nil:
		*v = Text(*raw.T)
	default:
		*v = Missing()
	}
	return nil
}
