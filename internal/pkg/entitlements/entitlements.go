package entitlements

import (
	"strings"

	"github.com/vigilohq/vigilo/app/models"
)

type Plan string

const (
	PlanFree     Plan = "free"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

// Entitlement is the derived pair gating feature access. IsValid is true
// unconditionally on the free plan; paid plans are only valid while the
// subscription status is active or trialing.
type Entitlement struct {
	ProductID Plan
	IsValid   bool
}

// Resolve computes the effective entitlement from an owner's stored billing
// fields.
func Resolve(owner models.Owner) Entitlement {
	e := owner.GetEntitlement()
	plan := NormalizePlan(e.ProductID)
	if plan == PlanFree {
		return Entitlement{ProductID: PlanFree, IsValid: true}
	}

	switch strings.ToLower(strings.TrimSpace(e.SubscriptionStatus)) {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing:
		return Entitlement{ProductID: plan, IsValid: true}
	default:
		return Entitlement{ProductID: plan, IsValid: false}
	}
}

// EffectivePlan collapses an invalid paid entitlement down to free.
func EffectivePlan(owner models.Owner) Plan {
	ent := Resolve(owner)
	if !ent.IsValid {
		return PlanFree
	}
	return ent.ProductID
}

// NormalizePlan maps arbitrary stored strings onto the closed plan set.
func NormalizePlan(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanPro):
		return PlanPro
	case string(PlanBusiness):
		return PlanBusiness
	default:
		return PlanFree
	}
}

// MonitorLimit returns how many monitors a plan may create.
func MonitorLimit(plan Plan) int {
	switch plan {
	case PlanBusiness:
		return 100
	case PlanPro:
		return 25
	default:
		return 3
	}
}

// AlertRecipientLimit returns how many recipients a single alert channel may
// fan out to.
func AlertRecipientLimit(plan Plan) int {
	switch plan {
	case PlanBusiness:
		return 25
	case PlanPro:
		return 10
	default:
		return 1
	}
}

// AllowsAPIAccess reports whether the plan may use the JSON API.
func AllowsAPIAccess(plan Plan) bool {
	return plan == PlanPro || plan == PlanBusiness
}

// MinCheckInterval returns the tightest probe interval a plan may configure.
func MinCheckInterval(plan Plan) int {
	switch plan {
	case PlanBusiness:
		return 30
	case PlanPro:
		return 60
	default:
		return 300
	}
}
