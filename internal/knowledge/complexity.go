package knowledge

import (
	"strings"

	"github.com/sqlpilot/sqlpilot/internal/models"
)

// EstimateComplexity scores a SQL statement with a fixed feature rubric:
// +1 JOIN, +1 GROUP BY, +1 HAVING, +2 subquery after FROM, +1 when more
// than one JOIN, +2 UNION. Totals of 0-1 are simple, 2-3 medium, higher
// complex. The rubric is deliberately coarse; it only needs to sort
// stored examples into three stable buckets.
func EstimateComplexity(sql string) models.Complexity {
	upper := strings.ToUpper(sql)
	compact := strings.ReplaceAll(upper, "( ", "(")

	score := 0
	joins := strings.Count(upper, "JOIN")
	if joins >= 1 {
		score++
	}
	if joins > 1 {
		score++
	}
	if strings.Contains(upper, "GROUP BY") {
		score++
	}
	if strings.Contains(upper, "HAVING") {
		score++
	}
	if fromIdx := strings.Index(compact, "FROM"); fromIdx >= 0 {
		if strings.Contains(compact[fromIdx:], "(SELECT") {
			score += 2
		}
	}
	if strings.Contains(upper, "UNION") {
		score += 2
	}

	switch {
	case score <= 1:
		return models.ComplexitySimple
	case score <= 3:
		return models.ComplexityMedium
	default:
		return models.ComplexityComplex
	}
}
