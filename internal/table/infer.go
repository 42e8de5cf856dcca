package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// missingTokens are the cell spellings read as missing, after trimming.
var missingTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"n/a":  true,
	"NaN":  true,
	"nan":  true,
	"NAN":  true,
	"null": true,
	"NULL": true,
	"Null": true,
	"None": true,
	"none": true,
	"#N/A": true,
	"#NA":  true,
	"<NA>": true,
	"-NaN": true,
	"-nan": true,
	"-":    true,
}

// DateLayouts are tried in order when inferring or parsing date cells.
var DateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02.01.2006",
}

// IsMissing reports whether a raw cell is read as missing.
func IsMissing(s string) bool {
	return missingTokens[strings.TrimSpace(s)]
}

// InferKind picks the narrowest kind that every non-missing cell parses as:
// int, then float, then date, then string. An all-missing column is string.
func InferKind(cells []string, decimalComma bool) Kind {
	isInt, isFloat, isDate := true, true, true
	seen := false
	for _, raw := range cells {
		if IsMissing(raw) {
			continue
		}
		seen = true
		s := strings.TrimSpace(raw)
		if isInt {
			if _, ok := parseInt(s); !ok {
				isInt = false
			}
		}
		if isFloat && !isInt {
			if _, ok := parseFloat(s, decimalComma); !ok {
				isFloat = false
			}
		}
		if isDate {
			if _, ok := parseDate(s); !ok {
				isDate = false
			}
		}
		if !isInt && !isFloat && !isDate {
			return KindString
		}
	}
	switch {
	case !seen:
		return KindString
	case isInt:
		return KindInt
	case isFloat:
		return KindFloat
	case isDate:
		return KindDate
	}
	return KindString
}

// ParseCell converts a raw cell under kind. ok is false for missing cells and
// for cells that do not parse; the returned value is then nil.
func ParseCell(raw string, kind Kind, decimalComma bool) (any, bool) {
	if IsMissing(raw) {
		return nil, false
	}
	s := strings.TrimSpace(raw)
	switch kind {
	case KindInt:
		if v, ok := parseInt(s); ok {
			return v, true
		}
		// "12.0" is still a valid integer cell.
		if f, ok := parseFloat(s, decimalComma); ok && f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			return int64(f), true
		}
		return nil, false
	case KindFloat:
		if v, ok := parseFloat(s, decimalComma); ok {
			return v, true
		}
		return nil, false
	case KindDate:
		if v, ok := parseDate(s); ok {
			return v, true
		}
		return nil, false
	default:
		return raw, true
	}
}

// Convert re-types an already parsed cell. Unconvertible cells become nil.
func Convert(v any, kind Kind) any {
	if v == nil {
		return nil
	}
	switch kind {
	case KindInt:
		switch x := v.(type) {
		case int64:
			return x
		case float64:
			if x == math.Trunc(x) && !math.IsInf(x, 0) {
				return int64(x)
			}
			return nil
		case string:
			out, _ := ParseCell(x, KindInt, false)
			return out
		}
	case KindFloat:
		if f, ok := ToFloat(v); ok {
			return f
		}
		return nil
	case KindDate:
		switch x := v.(type) {
		case time.Time:
			return x
		case string:
			out, _ := ParseCell(x, KindDate, false)
			return out
		}
	case KindString:
		return FormatValue(v)
	}
	return nil
}

// digitGroups strips thousands separators such as "1 250 000".
var digitGroups = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "")

// ToFloat converts numeric cells and numeric strings to float64. Strings may
// use a decimal comma and space-separated digit groups.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return 0, false
		}
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case string:
		if IsMissing(x) {
			return 0, false
		}
		return parseFloat(digitGroups.Replace(strings.TrimSpace(x)), true)
	}
	return 0, false
}

// KeyString returns the canonical join-key form of a cell: integral numbers
// print without a fraction, strings are trimmed. Missing cells have no key.
func KeyString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return "", false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && strings.ContainsAny(s, ".eE") && math.Abs(f) < 1<<53 {
			return strconv.FormatInt(int64(f), 10), true
		}
		return s, true
	case float64:
		if math.IsNaN(x) {
			return "", false
		}
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return strconv.FormatInt(int64(x), 10), true
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	}
	return FormatValue(v), true
}

// FormatValue renders a cell as text. Missing cells render empty.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	case []byte:
		return string(x)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func parseInt(s string) (int64, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}

func parseFloat(s string, decimalComma bool) (float64, bool) {
	if decimalComma && strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
