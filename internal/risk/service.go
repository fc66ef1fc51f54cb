package risk

import (
	"context"
	"fmt"

	"github.com/mercuriabank/backend/internal/common/logger"
)

// RepositoryInterface is the persistence contract Service depends on.
type RepositoryInterface interface {
	RulesForEventType(ctx context.Context, eventType string) ([]Rule, error)
	SaveEvaluation(ctx context.Context, e *Evaluation) error
	GetEvaluationByIdempotencyKey(ctx context.Context, key string) (*Evaluation, error)
	GetEvaluation(ctx context.Context, id string) (*Evaluation, error)
	ListRules(ctx context.Context) ([]Rule, error)
}

type Service struct {
	repo   RepositoryInterface
	logger *logger.Logger
}

func NewService(repo RepositoryInterface, log *logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

// Evaluate runs every enabled rule configured for req.EventType and
// persists the result, matching original_source's POST /evaluations route.
// A repeated Idempotency-Key returns the first evaluation unchanged rather
// than re-scoring and risking a different decision for the same request.
func (s *Service) Evaluate(ctx context.Context, req *EvaluationRequest, idempotencyKey string) (*EvaluationResponse, error) {
	if idempotencyKey != "" {
		if existing, err := s.repo.GetEvaluationByIdempotencyKey(ctx, idempotencyKey); err == nil && existing != nil {
			return toEvaluationResponse(existing), nil
		}
	}

	rules, err := s.repo.RulesForEventType(ctx, req.EventType)
	if err != nil {
		return nil, fmt.Errorf("failed to load risk rules: %w", err)
	}

	engine := NewEngine(rules)
	evalCtx := EvaluationContext{
		EventType: req.EventType,
		SubjectID: req.SubjectID,
		UserID:    req.UserID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Metadata:  req.Metadata,
	}
	decision, score, triggered := engine.Evaluate(evalCtx)

	evaluation := &Evaluation{
		EventType:      req.EventType,
		SubjectID:      req.SubjectID,
		UserID:         req.UserID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Metadata:       req.Metadata,
		Decision:       decision,
		RiskScore:      score,
		TriggeredRules: triggered,
		IdempotencyKey: idempotencyKey,
	}

	if err := s.repo.SaveEvaluation(ctx, evaluation); err != nil {
		if err == errDuplicateIdempotencyKey {
			existing, getErr := s.repo.GetEvaluationByIdempotencyKey(ctx, idempotencyKey)
			if getErr != nil {
				return nil, fmt.Errorf("failed to load existing evaluation: %w", getErr)
			}
			return toEvaluationResponse(existing), nil
		}
		return nil, fmt.Errorf("failed to save risk evaluation: %w", err)
	}

	s.logger.Infof("risk evaluation %s: event=%s decision=%s score=%.2f rules=%d",
		evaluation.ID, req.EventType, decision, score, len(triggered))

	return toEvaluationResponse(evaluation), nil
}

func (s *Service) GetEvaluation(ctx context.Context, id string) (*EvaluationResponse, error) {
	evaluation, err := s.repo.GetEvaluation(ctx, id)
	if err != nil {
		return nil, err
	}
	if evaluation == nil {
		return nil, nil
	}
	return toEvaluationResponse(evaluation), nil
}

func (s *Service) ListRules(ctx context.Context) ([]Rule, error) {
	return s.repo.ListRules(ctx)
}
