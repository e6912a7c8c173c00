package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/soundprediction/careergraph/pkg/types"
)

var (
	yearMonthPattern = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})$`)
	fullDatePattern  = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})$`)
)

var presentWords = map[string]bool{
	"present": true,
	"current": true,
	"now":     true,
}

// NormalizeDate normalizes a date to YYYY-MM or Present. It reports false
// when the value could not be normalized, in which case raw is returned
// trimmed but otherwise unchanged. Blank input yields "", true.
func NormalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", true
	}
	if presentWords[strings.ToLower(s)] {
		return types.DatePresent, true
	}

	var year, month string
	if m := yearMonthPattern.FindStringSubmatch(s); m != nil {
		year, month = m[1], m[2]
	} else if m := fullDatePattern.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[3])
		if day < 1 || day > 31 {
			return s, false
		}
		year, month = m[1], m[2]
	} else {
		return s, false
	}

	mm, _ := strconv.Atoi(month)
	if mm < 1 || mm > 12 {
		return s, false
	}
	return fmt.Sprintf("%s-%02d", year, mm), true
}

// dateNormalizer collects flags while normalizing the dates of one record.
type dateNormalizer struct {
	flags []types.Flag
}

func (d *dateNormalizer) date(field, raw string) string {
	v, ok := NormalizeDate(raw)
	if !ok {
		d.flags = append(d.flags, types.Flag{
			Field:  field,
			Value:  v,
			Reason: "not a YYYY-MM date; kept as free text",
		})
	}
	return v
}

func (d *dateNormalizer) dateRange(field string, r types.DateRange) types.DateRange {
	return types.DateRange{
		FromDate: d.date(field+".from_date", r.FromDate),
		ToDate:   d.date(field+".to_date", r.ToDate),
	}
}
