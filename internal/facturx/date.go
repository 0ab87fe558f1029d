package facturx

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	dayFirst  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	yearFirst = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`)
)

// FormatDate converts DD/MM/YYYY or YYYY-MM-DD to the YYYYMMDD token of
// format 102. Parts are reordered and zero-padded by shape only, so
// single digits and calendar-impossible days still give eight digits.
// Anything else is reduced to its digits, truncated to eight. It never fails.
func FormatDate(s string) string {
	s = strings.TrimSpace(s)
	if m := dayFirst.FindStringSubmatch(s); m != nil {
		return ymd(m[3], m[2], m[1])
	}
	if m := yearFirst.FindStringSubmatch(s); m != nil {
		return ymd(m[1], m[2], m[3])
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) > 8 {
		digits = digits[:8]
	}
	return digits
}

func ymd(year, month, day string) string {
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	return fmt.Sprintf("%s%02d%02d", year, m, d)
}
