package services

import "math"

// FormatSampleRows returns a copy of rows with numeric values rounded to two
// decimal places, the precision surfaced to users.
func FormatSampleRows(rows []map[string]any) []map[string]any {
	if rows == nil {
		return nil
	}

	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		formatted := make(map[string]any, len(row))
		for k, v := range row {
			formatted[k] = formatValue(v)
		}
		out[i] = formatted
	}
	return out
}

func formatValue(v any) any {
	switch n := v.(type) {
	case float64:
		return round2(n)
	case float32:
		return round2(float64(n))
	default:
		return v
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
