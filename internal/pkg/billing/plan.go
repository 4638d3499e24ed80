package billing

import (
	"strings"

	"github.com/vigilohq/vigilo/internal/pkg/entitlements"
)

func normalizePlan(plan string) string {
	return string(entitlements.NormalizePlan(plan))
}

func planRank(plan string) int {
	switch entitlements.NormalizePlan(plan) {
	case entitlements.PlanBusiness:
		return 2
	case entitlements.PlanPro:
		return 1
	default:
		return 0
	}
}

func normalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active":
		return "active"
	case "trialing":
		return "trialing"
	case "past_due":
		return "past_due"
	case "canceled", "cancelled":
		return "canceled"
	default:
		return "none"
	}
}
