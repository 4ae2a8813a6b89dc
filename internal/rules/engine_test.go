package rules

import (
	"context"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestLoadRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.FraudRule{
		ID:         "test-rule-001",
		Name:       "test_rule",
		Expression: "amount_zscore > 0.5",
		Points:     10,
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.FraudRule{
		ID:         "invalid-rule",
		Name:       "invalid_rule",
		Expression: "this is not valid CEL !!!",
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err == nil {
		t.Error("expected error for invalid CEL expression")
	}
}

func TestLoadNonBoolRule(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	rule := &domain.FraudRule{
		ID:         "non-bool-rule",
		Name:       "non_bool_rule",
		Expression: "amount_zscore * 2.0",
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err == nil {
		t.Error("expected error for non-bool expression")
	}
}

func TestEvaluateBuiltinRules(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	if err := engine.LoadRules(BuiltinRules()); err != nil {
		t.Fatalf("failed to load builtin rules: %v", err)
	}
	if engine.RulesCount() != 5 {
		t.Fatalf("expected 5 builtin rules, got %d", engine.RulesCount())
	}

	// Large novel-merchant off-hours transaction: 40 + 25 + 15 = 80.
	fv := domain.FeatureVector{
		AmountZScore:    1.0,
		LargeAmount:     1.0,
		MerchantNovelty: 1.0,
		OffHours:        0.8,
		Velocity1h:      0.2,
		Velocity24h:     0.1,
	}

	score, fired, err := engine.Evaluate(context.Background(), fv)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if score != 80 {
		t.Errorf("expected score 80, got %v", score)
	}
	if len(fired) != 3 {
		t.Fatalf("expected 3 fired rules, got %d", len(fired))
	}

	// Fired rules are sorted by name.
	wantNames := []string{"large_amount", "new_merchant", "off_hours"}
	for i, name := range wantNames {
		if fired[i].Name != name {
			t.Errorf("fired[%d]: expected %s, got %s", i, name, fired[i].Name)
		}
	}
}

func TestEvaluateNoRulesFire(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()
	engine.LoadRules(BuiltinRules())

	score, fired, err := engine.Evaluate(context.Background(), domain.FeatureVector{
		Velocity1h:  0.2,
		Velocity24h: 0.1,
	})
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if score != 0 {
		t.Errorf("expected score 0, got %v", score)
	}
	if len(fired) != 0 {
		t.Errorf("expected no fired rules, got %d", len(fired))
	}
}

func TestEvaluateScoreCapped(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()
	engine.LoadRules(BuiltinRules())

	// All five rules fire: 40+35+25+15+30 = 145, capped at 100.
	fv := domain.FeatureVector{
		LargeAmount:      1.0,
		MerchantNovelty:  1.0,
		OffHours:         0.8,
		Velocity1h:       1.0,
		LocationDistance: 1.0,
	}

	score, fired, err := engine.Evaluate(context.Background(), fv)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if score != 100 {
		t.Errorf("expected capped score 100, got %v", score)
	}
	if len(fired) != 5 {
		t.Errorf("expected 5 fired rules, got %d", len(fired))
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()
	engine.LoadRules(BuiltinRules())

	fv := domain.FeatureVector{
		LargeAmount: 1.0,
		Velocity1h:  0.9,
	}

	first, firedFirst, _ := engine.Evaluate(context.Background(), fv)
	for i := 0; i < 10; i++ {
		score, fired, err := engine.Evaluate(context.Background(), fv)
		if err != nil {
			t.Fatalf("evaluation failed: %v", err)
		}
		if score != first {
			t.Fatalf("run %d: score %v differs from first run %v", i, score, first)
		}
		if len(fired) != len(firedFirst) {
			t.Fatalf("run %d: fired count %d differs from first run %d", i, len(fired), len(firedFirst))
		}
		for j := range fired {
			if fired[j] != firedFirst[j] {
				t.Fatalf("run %d: fired[%d] = %+v, first run %+v", i, j, fired[j], firedFirst[j])
			}
		}
	}
}

func TestReloadRules(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()
	engine.LoadRules(BuiltinRules())

	replacement := []*domain.FraudRule{
		{
			ID:         "custom-velocity",
			Name:       "custom_velocity",
			Expression: "velocity_24h > 0.9",
			Points:     50,
			Enabled:    true,
		},
		{
			ID:         "disabled-rule",
			Name:       "disabled_rule",
			Expression: "off_hours > 0.0",
			Points:     10,
			Enabled:    false,
		},
	}

	if err := engine.ReloadRules(replacement); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule after reload, got %d", engine.RulesCount())
	}

	score, _, _ := engine.Evaluate(context.Background(), domain.FeatureVector{Velocity24h: 1.0})
	if score != 50 {
		t.Errorf("expected score 50 from reloaded rule, got %v", score)
	}
}

func TestReloadInvalidRuleKeepsExisting(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()
	engine.LoadRules(BuiltinRules())

	bad := []*domain.FraudRule{
		{ID: "bad", Name: "bad", Expression: "not valid !!!", Enabled: true},
	}

	if err := engine.ReloadRules(bad); err == nil {
		t.Fatal("expected reload error for invalid rule")
	}
	if engine.RulesCount() != 5 {
		t.Errorf("expected existing rules untouched after failed reload, got %d", engine.RulesCount())
	}
}
