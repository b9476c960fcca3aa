package usage

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/homescope/reports-back/internal/domain"
	"github.com/homescope/reports-back/internal/repository"
)

var evalNow = time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

type governorFixture struct {
	governor *Governor
	accounts *repository.MemoryAccountsRepository
	reports  *repository.MemoryReportsRepository
}

func newFixture() *governorFixture {
	accounts := repository.NewMemoryAccountsRepository()
	reports := repository.NewMemoryReportsRepository()
	logger := log.New(io.Discard, "", 0)
	return &governorFixture{
		governor: NewGovernor(accounts, accounts, reports, logger),
		accounts: accounts,
		reports:  reports,
	}
}

func (f *governorFixture) seedAccount(limit int, allowOverage bool, overageCents int) {
	f.accounts.PutAccount(&domain.Account{ID: "acct-1", PlanSlug: "free", IsActive: true})
	f.accounts.PutPlan(&domain.Plan{
		Slug:               "free",
		MonthlyReportLimit: limit,
		AllowOverage:       allowOverage,
		OveragePriceCents:  overageCents,
	})
}

func (f *governorFixture) seedUsage(t *testing.T, completed int) {
	t.Helper()
	for i := 0; i < completed; i++ {
		err := f.reports.CreateReport(context.Background(), &domain.ReportGeneration{
			ID:          fmt.Sprintf("run-%03d", i),
			AccountID:   "acct-1",
			Status:      domain.ReportStatusCompleted,
			GeneratedAt: evalNow.AddDate(0, 0, -1),
		})
		if err != nil {
			t.Fatalf("seed report: %v", err)
		}
	}
}

func TestEvaluateThresholds(t *testing.T) {
	cases := []struct {
		name         string
		limit        int
		usage        int
		allowOverage bool
		want         Decision
	}{
		{"under warn ratio", 50, 39, false, Allow},
		{"at warn ratio", 50, 40, false, AllowWithWarning},
		{"just under block ratio", 50, 54, false, AllowWithWarning},
		{"at block ratio", 50, 55, false, Block},
		{"block ratio with overage", 50, 56, true, AllowWithWarning},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture()
			fx.seedAccount(tc.limit, tc.allowOverage, 150)
			fx.seedUsage(t, tc.usage)

			decision, info, err := fx.governor.Evaluate(context.Background(), "acct-1", evalNow)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if decision != tc.want {
				t.Errorf("decision = %s, want %s (usage=%d limit=%d ratio=%.2f)",
					decision, tc.want, info.Usage, info.Limit, info.Ratio)
			}
		})
	}
}

func TestEvaluateOverageCost(t *testing.T) {
	fx := newFixture()
	fx.seedAccount(50, true, 150)
	fx.seedUsage(t, 56)

	decision, info, err := fx.governor.Evaluate(context.Background(), "acct-1", evalNow)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision != AllowWithWarning {
		t.Fatalf("decision = %s, want ALLOW_WITH_WARNING", decision)
	}
	if info.OverageCents != 6*150 {
		t.Errorf("overage_cents = %d, want %d", info.OverageCents, 6*150)
	}
}

func TestEvaluateOverrideBeatsPlanLimit(t *testing.T) {
	fx := newFixture()
	fx.seedAccount(50, false, 0)
	override := 10
	account, _ := fx.accounts.GetAccount(context.Background(), "acct-1")
	account.PlanLimitOverride = &override
	fx.accounts.PutAccount(account)
	fx.seedUsage(t, 11)

	decision, _, err := fx.governor.Evaluate(context.Background(), "acct-1", evalNow)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision != Block {
		t.Errorf("decision = %s, want BLOCK against the override limit", decision)
	}
}

func TestEvaluateUnlimitedPlans(t *testing.T) {
	for _, limit := range []int{0, -1, 10_000, 50_000} {
		fx := newFixture()
		fx.seedAccount(limit, false, 0)
		fx.seedUsage(t, 5000)

		decision, info, err := fx.governor.Evaluate(context.Background(), "acct-1", evalNow)
		if err != nil {
			t.Fatalf("Evaluate(limit=%d): %v", limit, err)
		}
		if decision != Allow || !info.Unlimited {
			t.Errorf("limit %d: decision = %s unlimited=%v, want ALLOW unlimited", limit, decision, info.Unlimited)
		}
	}
}

func TestEvaluateDefaultLimitWithoutPlan(t *testing.T) {
	fx := newFixture()
	fx.accounts.PutAccount(&domain.Account{ID: "acct-1", IsActive: true}) // no plan slug
	fx.seedUsage(t, 111)

	decision, info, err := fx.governor.Evaluate(context.Background(), "acct-1", evalNow)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if info.Limit != 100 {
		t.Errorf("limit = %d, want the default 100", info.Limit)
	}
	if decision != Block {
		t.Errorf("decision = %s, want BLOCK at 111/100", decision)
	}
}

// Monotonicity: growing usage never relaxes the decision.
func TestEvaluateMonotonicity(t *testing.T) {
	var previous Decision
	for usage := 0; usage <= 60; usage += 5 {
		fx := newFixture()
		fx.seedAccount(50, false, 0)
		fx.seedUsage(t, usage)

		decision, _, err := fx.governor.Evaluate(context.Background(), "acct-1", evalNow)
		if err != nil {
			t.Fatalf("Evaluate(usage=%d): %v", usage, err)
		}
		if decision < previous {
			t.Fatalf("decision relaxed from %s to %s as usage grew to %d", previous, decision, usage)
		}
		previous = decision
	}
}
