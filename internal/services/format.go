package services

import (
	"fmt"
	"strings"
)

// euroString renders cents as a German-style euro amount, e.g. "12,50€".
func euroString(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	s := fmt.Sprintf("%d,%02d€", cents/100, cents%100)
	return sign + s
}

// percentString renders a ratio as a whole percentage, e.g. "85%".
func percentString(ratio float64) string {
	return strings.TrimSpace(fmt.Sprintf("%.0f%%", ratio*100))
}
