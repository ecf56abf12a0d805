package report

import (
	"fmt"

	"github.com/RIKUY-ORG/Rikuy/api/src/model"
)

const (
	rewardBasePoints    = 100
	rewardSeverityPoint = 10
)

// EstimateReward is display-only: base points plus a severity bonus, doubled for
// corruption reports.
func EstimateReward(category model.Category, severity int) int {
	if severity < 1 {
		severity = 1
	}
	if severity > 10 {
		severity = 10
	}
	multiplier := 1
	if category == model.CategoryCorrupcion {
		multiplier = 2
	}
	return rewardBasePoints + severity*rewardSeverityPoint*multiplier
}

func rewardMessage(points int) string {
	return fmt.Sprintf("Podrás ganar hasta %d puntos cuando tu reporte sea validado", points)
}
