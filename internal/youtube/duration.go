package youtube

import (
	"fmt"
	"regexp"
	"strconv"

	"dailycast/internal/services"
)

var durationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISO8601Duration converts the contentDetails duration format
// (PT1H2M3S) into seconds.
func ParseISO8601Duration(value string) (int, error) {
	match := durationPattern.FindStringSubmatch(value)
	if match == nil {
		return 0, fmt.Errorf("%w: malformed duration %q", services.ErrValidation, value)
	}
	total := 0
	multipliers := []int{86400, 3600, 60, 1}
	for i, raw := range match[1:] {
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: malformed duration %q", services.ErrValidation, value)
		}
		total += n * multipliers[i]
	}
	return total, nil
}
