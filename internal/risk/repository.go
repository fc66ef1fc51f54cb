package risk

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/mercuriabank/backend/internal/common/db"
	"github.com/mercuriabank/backend/internal/common/logger"
)

type Repository struct {
	db     *db.DB
	logger *logger.Logger
}

func NewRepository(database *db.DB, log *logger.Logger) *Repository {
	return &Repository{db: database, logger: log}
}

// RulesForEventType loads every enabled rule whose event_types includes
// eventType, ordered the way original_source's seed inserts them so rule
// precedence (which one's weight/action applies first) stays stable.
func (r *Repository) RulesForEventType(ctx context.Context, eventType string) ([]Rule, error) {
	query := `
		SELECT id, name, description, event_types, rule_type, action, config, weight, enabled, created_at
		FROM risk_rules
		WHERE enabled = true AND event_types @> to_jsonb($1::text)
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, eventType)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var rule Rule
		var eventTypesRaw, configRaw []byte
		var createdAt sql.NullTime
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Description, &eventTypesRaw, &rule.Type, &rule.Action, &configRaw, &rule.Weight, &rule.Enabled, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan risk rule: %w", err)
		}
		if err := json.Unmarshal(eventTypesRaw, &rule.EventTypes); err != nil {
			return nil, fmt.Errorf("failed to decode event_types: %w", err)
		}
		if err := json.Unmarshal(configRaw, &rule.Config); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *Repository) ListRules(ctx context.Context) ([]Rule, error) {
	query := `
		SELECT id, name, description, event_types, rule_type, action, config, weight, enabled, created_at
		FROM risk_rules
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list risk rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var rule Rule
		var eventTypesRaw, configRaw []byte
		var createdAt sql.NullTime
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Description, &eventTypesRaw, &rule.Type, &rule.Action, &configRaw, &rule.Weight, &rule.Enabled, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan risk rule: %w", err)
		}
		_ = json.Unmarshal(eventTypesRaw, &rule.EventTypes)
		_ = json.Unmarshal(configRaw, &rule.Config)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// SeedDefaultRules inserts any defaultRules entry not already present by
// name, matching original_source's seed_default_rules idempotent insert.
func (r *Repository) SeedDefaultRules(ctx context.Context) error {
	for _, rule := range defaultRules {
		eventTypes, err := json.Marshal(rule.EventTypes)
		if err != nil {
			return err
		}
		config, err := json.Marshal(rule.Config)
		if err != nil {
			return err
		}

		_, err = r.db.ExecContext(ctx, `
			INSERT INTO risk_rules (name, description, event_types, rule_type, action, config, weight, enabled)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (name) DO NOTHING
		`, rule.Name, rule.Description, eventTypes, rule.Type, rule.Action, config, rule.Weight, rule.Enabled)
		if err != nil {
			return fmt.Errorf("failed to seed rule %q: %w", rule.Name, err)
		}
	}
	r.logger.Info("risk rules seeded")
	return nil
}

// SaveEvaluation persists a completed evaluation. A duplicate idempotency
// key (a retried Idempotency-Key header) is reported as a uniqueness
// violation so the service can return the prior evaluation instead.
func (r *Repository) SaveEvaluation(ctx context.Context, e *Evaluation) error {
	triggeredRaw, err := json.Marshal(e.TriggeredRules)
	if err != nil {
		return fmt.Errorf("failed to marshal triggered_rules: %w", err)
	}
	metadataRaw, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var idem sql.NullString
	if e.IdempotencyKey != "" {
		idem = sql.NullString{String: e.IdempotencyKey, Valid: true}
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO risk_evaluations (event_type, subject_id, user_id, amount, currency, decision, risk_score, triggered_rules, metadata, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`, e.EventType, e.SubjectID, e.UserID, e.Amount, e.Currency, e.Decision, e.RiskScore, triggeredRaw, metadataRaw, idem).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to save risk evaluation: %w", err)
	}
	return nil
}

func (r *Repository) GetEvaluationByIdempotencyKey(ctx context.Context, key string) (*Evaluation, error) {
	return r.scanEvaluation(r.db.QueryRowContext(ctx, `
		SELECT id, event_type, subject_id, user_id, amount, currency, decision, risk_score, triggered_rules, metadata, created_at
		FROM risk_evaluations
		WHERE idempotency_key = $1
	`, key))
}

func (r *Repository) GetEvaluation(ctx context.Context, id string) (*Evaluation, error) {
	return r.scanEvaluation(r.db.QueryRowContext(ctx, `
		SELECT id, event_type, subject_id, user_id, amount, currency, decision, risk_score, triggered_rules, metadata, created_at
		FROM risk_evaluations
		WHERE id = $1
	`, id))
}

func (r *Repository) scanEvaluation(row *sql.Row) (*Evaluation, error) {
	var e Evaluation
	var triggeredRaw, metadataRaw []byte
	if err := row.Scan(&e.ID, &e.EventType, &e.SubjectID, &e.UserID, &e.Amount, &e.Currency, &e.Decision, &e.RiskScore, &triggeredRaw, &metadataRaw, &e.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan risk evaluation: %w", err)
	}
	if len(triggeredRaw) > 0 {
		_ = json.Unmarshal(triggeredRaw, &e.TriggeredRules)
	}
	if len(metadataRaw) > 0 {
		_ = json.Unmarshal(metadataRaw, &e.Metadata)
	}
	return &e, nil
}

var errDuplicateIdempotencyKey = fmt.Errorf("duplicate idempotency key")
