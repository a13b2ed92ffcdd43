package domain

import "testing"

func TestPlanConfiguration(t *testing.T) {
	tests := []struct {
		plan    Plan
		valid   bool
		credits int64
		period  PeriodKind
		free    bool
	}{
		{PlanFree, true, 30_000, PeriodDaily, true},
		{PlanPlus, true, 3_000_000, PeriodMonthly, false},
		{PlanPro, true, 12_000_000, PeriodMonthly, false},
		{"ENTERPRISE", false, 0, PeriodMonthly, false},
		{"", false, 0, PeriodMonthly, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			if got := tt.plan.Valid(); got != tt.valid {
				t.Fatalf("Valid: got %v, want %v", got, tt.valid)
			}
			if got := tt.plan.Credits(); got != tt.credits {
				t.Fatalf("Credits: got %d, want %d", got, tt.credits)
			}
			if got := tt.plan.Period(); got != tt.period {
				t.Fatalf("Period: got %q, want %q", got, tt.period)
			}
			if got := tt.plan.IsFree(); got != tt.free {
				t.Fatalf("IsFree: got %v, want %v", got, tt.free)
			}
		})
	}
}
