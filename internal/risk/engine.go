package risk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mercuriabank/backend/internal/money"
)

// Engine runs a fixed set of rules against an evaluation context and
// aggregates a single decision, line-for-line grounded on risk_engine.py's
// RiskEngine.evaluate.
type Engine struct {
	rules []Rule
}

func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Evaluate walks every enabled rule whose event_types includes ctx's, in
// rule order, accumulating risk_score and escalating the decision to the
// worst outcome any triggered rule calls for.
func (e *Engine) Evaluate(ctx EvaluationContext) (Decision, float64, []TriggeredRule) {
	decision := DecisionApprove
	score := 0.0
	var triggered []TriggeredRule

	for _, rule := range e.rules {
		if !rule.Enabled || !rule.appliesTo(ctx.EventType) {
			continue
		}
		trigger := evaluateRule(rule, ctx)
		if trigger == nil {
			continue
		}
		triggered = append(triggered, *trigger)
		score += trigger.Weight
		decision = escalate(decision, trigger.Action)
	}

	return decision, score, triggered
}

func evaluateRule(rule Rule, ctx EvaluationContext) *TriggeredRule {
	switch rule.Type {
	case RuleAmountThreshold:
		return evaluateAmountThreshold(rule, ctx)
	case RuleCountryMismatch:
		return evaluateCountryMismatch(rule, ctx)
	case RuleBlocklistCountry:
		return evaluateBlocklistCountry(rule, ctx)
	case RuleEmailDomainBlock:
		return evaluateEmailDomainBlock(rule, ctx)
	default:
		return nil
	}
}

func evaluateAmountThreshold(rule Rule, ctx EvaluationContext) *TriggeredRule {
	thresholds, _ := rule.Config["thresholds"].(map[string]interface{})
	defaultThreshold := thresholdValue(thresholds, "default")
	if defaultThreshold == "" {
		defaultThreshold = thresholdValue(thresholds, "value")
	}
	if defaultThreshold == "" {
		defaultThreshold = "0"
	}

	currencyThreshold := thresholdValue(thresholds, ctx.Currency)
	if currencyThreshold == "" {
		currencyThreshold = defaultThreshold
	}

	amount, err := money.Parse(ctx.Amount)
	if err != nil {
		return nil
	}
	threshold, err := money.Parse(currencyThreshold)
	if err != nil {
		return nil
	}

	if amount.Cmp(threshold) >= 0 {
		reason := fmt.Sprintf("amount %s %s >= %s", ctx.Amount, ctx.Currency, currencyThreshold)
		return trigger(rule, reason)
	}
	return nil
}

func thresholdValue(thresholds map[string]interface{}, key string) string {
	if thresholds == nil {
		return ""
	}
	switch v := thresholds[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func evaluateCountryMismatch(rule Rule, ctx EvaluationContext) *TriggeredRule {
	ipCountry := strings.ToUpper(stringMeta(ctx.Metadata, "ip_country"))
	userCountry := strings.ToUpper(stringMeta(ctx.Metadata, "user_country"))
	if ipCountry != "" && userCountry != "" && ipCountry != userCountry {
		reason := fmt.Sprintf("ip_country %s != user_country %s", ipCountry, userCountry)
		return trigger(rule, reason)
	}
	return nil
}

func evaluateBlocklistCountry(rule Rule, ctx EvaluationContext) *TriggeredRule {
	blocked := stringSet(rule.Config["blocked"])
	ipCountry := strings.ToUpper(stringMeta(ctx.Metadata, "ip_country"))
	if ipCountry != "" && blocked[ipCountry] {
		return trigger(rule, fmt.Sprintf("ip_country %s is blocked", ipCountry))
	}
	return nil
}

func evaluateEmailDomainBlock(rule Rule, ctx EvaluationContext) *TriggeredRule {
	blocked := stringSet(rule.Config["domains"])
	domain := strings.ToLower(stringMeta(ctx.Metadata, "email_domain"))
	if domain != "" && blocked[domain] {
		return trigger(rule, fmt.Sprintf("email domain %s is blocklisted", domain))
	}
	return nil
}

func trigger(rule Rule, reason string) *TriggeredRule {
	return &TriggeredRule{
		RuleID: rule.ID,
		Name:   rule.Name,
		Action: rule.Action,
		Reason: reason,
		Weight: rule.Weight,
	}
}

func stringMeta(metadata map[string]interface{}, key string) string {
	if metadata == nil {
		return ""
	}
	s, _ := metadata[key].(string)
	return s
}

func stringSet(raw interface{}) map[string]bool {
	out := map[string]bool{}
	items, _ := raw.([]interface{})
	for _, item := range items {
		if s, ok := item.(string); ok {
			out[strings.ToUpper(s)] = true
			out[strings.ToLower(s)] = true
		}
	}
	return out
}
