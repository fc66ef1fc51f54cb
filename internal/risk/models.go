// Package risk implements the Risk Evaluator (spec §4.3): a rule engine
// that scores an event and returns an approve/review/decline decision for
// the Payment Intent Orchestrator (and, optionally, the Wallet Ledger
// Core's raw debit path) to act on. Grounded on original_source's
// services/risk_service/app/risk_engine.py and models/risk_rule.py, with
// the repository/service/handler layering borrowed from the teacher's
// internal/analytics package.
package risk

import "time"

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReview  Decision = "review"
	DecisionDecline Decision = "decline"
)

// decisionRank orders decisions so escalating to the worst outcome seen so
// far is a simple comparison, mirroring risk_engine.py's _escalate.
var decisionRank = map[Decision]int{
	DecisionApprove: 0,
	DecisionReview:  1,
	DecisionDecline: 2,
}

func escalate(current, triggered Decision) Decision {
	if decisionRank[triggered] > decisionRank[current] {
		return triggered
	}
	return current
}

type RuleType string

const (
	RuleAmountThreshold  RuleType = "amount_threshold"
	RuleCountryMismatch  RuleType = "country_mismatch"
	RuleBlocklistCountry RuleType = "blocklist_country"
	RuleEmailDomainBlock RuleType = "email_domain_block"
)

// Rule is a single configured check, seeded at startup from defaultRules.
// Config holds the type-specific parameters (amount_threshold's
// "thresholds", blocklist_country's "blocked", email_domain_block's
// "domains") as loosely-typed JSON, matching the original's JSON column.
type Rule struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	EventTypes  []string               `json:"event_types"`
	Type        RuleType               `json:"rule_type"`
	Action      Decision               `json:"action"`
	Weight      float64                `json:"weight"`
	Config      map[string]interface{} `json:"config"`
	Enabled     bool                   `json:"enabled"`
}

func (r Rule) appliesTo(eventType string) bool {
	for _, et := range r.EventTypes {
		if et == eventType {
			return true
		}
	}
	return false
}

// TriggeredRule records a single rule firing during an evaluation.
type TriggeredRule struct {
	RuleID string   `json:"rule_id"`
	Name   string   `json:"name"`
	Action Decision `json:"action"`
	Reason string   `json:"reason"`
	Weight float64  `json:"weight"`
}

// EvaluationContext is the input to the engine: amount as the validated
// decimal string, currency upper-cased, metadata as sent (nil when the
// request had none).
type EvaluationContext struct {
	EventType string
	SubjectID string
	UserID    string
	Amount    string
	Currency  string
	Metadata  map[string]interface{}
}

// Evaluation is the persisted record of a completed risk assessment
// (original_source's models/risk_evaluation.py).
type Evaluation struct {
	ID             string                 `json:"id"`
	EventType      string                 `json:"event_type"`
	SubjectID      string                 `json:"subject_id"`
	UserID         string                 `json:"user_id"`
	Amount         string                 `json:"amount"`
	Currency       string                 `json:"currency"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Decision       Decision               `json:"decision"`
	RiskScore      float64                `json:"risk_score"`
	TriggeredRules []TriggeredRule        `json:"triggered_rules"`
	IdempotencyKey string                 `json:"-"`
	CreatedAt      time.Time              `json:"created_at"`
}

// EvaluationRequest is the wire body of POST /evaluations, matching
// riskclient.EvaluationRequest's shape field for field.
type EvaluationRequest struct {
	EventType string                 `json:"event_type"`
	SubjectID string                 `json:"subject_id"`
	UserID    string                 `json:"user_id"`
	Amount    string                 `json:"amount"`
	Currency  string                 `json:"currency"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// EvaluationResponse mirrors riskclient.EvaluationResponse so callers
// deserialize the wire body with no translation layer.
type EvaluationResponse struct {
	ID             string    `json:"id"`
	Decision       Decision  `json:"decision"`
	RiskScore      float64   `json:"risk_score"`
	TriggeredRules []string  `json:"triggered_rules"`
	CreatedAt      time.Time `json:"created_at"`
}

func toEvaluationResponse(e *Evaluation) *EvaluationResponse {
	names := make([]string, 0, len(e.TriggeredRules))
	for _, tr := range e.TriggeredRules {
		names = append(names, tr.Name)
	}
	return &EvaluationResponse{
		ID:             e.ID,
		Decision:       e.Decision,
		RiskScore:      e.RiskScore,
		TriggeredRules: names,
		CreatedAt:      e.CreatedAt,
	}
}

type RuleResponse struct {
	Rules []Rule `json:"rules"`
}
