package entitlements

import (
	"testing"
	"time"

	"github.com/vigilohq/vigilo/app/models"
)

func userWith(product, status string) *models.User {
	return &models.User{
		ID: 1,
		Entitlement: models.Entitlement{
			ProductID:          product,
			SubscriptionStatus: status,
		},
	}
}

func TestResolve(t *testing.T) {
	cases := []struct {
		name      string
		product   string
		status    string
		wantPlan  Plan
		wantValid bool
	}{
		{"free is always valid", "free", models.SubscriptionStatusNone, PlanFree, true},
		{"free valid even with stale status", "free", models.SubscriptionStatusCanceled, PlanFree, true},
		{"active pro", "pro", models.SubscriptionStatusActive, PlanPro, true},
		{"trialing business", "business", models.SubscriptionStatusTrialing, PlanBusiness, true},
		{"past due pro is invalid", "pro", models.SubscriptionStatusPastDue, PlanPro, false},
		{"canceled business is invalid", "business", models.SubscriptionStatusCanceled, PlanBusiness, false},
		{"unknown product falls back to free", "enterprise", models.SubscriptionStatusActive, PlanFree, true},
		{"status is case insensitive", "pro", "Active", PlanPro, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(userWith(tc.product, tc.status))
			if got.ProductID != tc.wantPlan || got.IsValid != tc.wantValid {
				t.Fatalf("Resolve() = {%s %v}, want {%s %v}", got.ProductID, got.IsValid, tc.wantPlan, tc.wantValid)
			}
		})
	}
}

func TestEffectivePlanCollapsesInvalid(t *testing.T) {
	if got := EffectivePlan(userWith("business", models.SubscriptionStatusPastDue)); got != PlanFree {
		t.Fatalf("expected invalid business to collapse to free, got %s", got)
	}
	if got := EffectivePlan(userWith("pro", models.SubscriptionStatusActive)); got != PlanPro {
		t.Fatalf("expected active pro to stay pro, got %s", got)
	}
}

func TestLimitsPerPlan(t *testing.T) {
	if MonitorLimit(PlanFree) >= MonitorLimit(PlanPro) || MonitorLimit(PlanPro) >= MonitorLimit(PlanBusiness) {
		t.Fatal("monitor limits must grow with plan tier")
	}
	if AlertRecipientLimit(PlanFree) != 1 {
		t.Fatalf("free plan should allow one recipient, got %d", AlertRecipientLimit(PlanFree))
	}
	if AllowsAPIAccess(PlanFree) {
		t.Fatal("free plan must not grant API access")
	}
	if !AllowsAPIAccess(PlanPro) || !AllowsAPIAccess(PlanBusiness) {
		t.Fatal("paid plans must grant API access")
	}
	if MinCheckInterval(PlanBusiness) >= MinCheckInterval(PlanFree) {
		t.Fatal("business plan must allow tighter probe intervals than free")
	}
}

func TestResolveTeamOwner(t *testing.T) {
	team := &models.Team{
		ID: 3,
		Entitlement: models.Entitlement{
			ProductID:          "business",
			SubscriptionStatus: models.SubscriptionStatusActive,
			PeriodEnd:          func() *time.Time { ts := time.Now().Add(24 * time.Hour); return &ts }(),
		},
	}
	got := Resolve(team)
	if got.ProductID != PlanBusiness || !got.IsValid {
		t.Fatalf("Resolve(team) = {%s %v}, want {business true}", got.ProductID, got.IsValid)
	}
}
