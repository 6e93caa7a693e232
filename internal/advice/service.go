// Package advice answers symptom questions through an external language model,
// metered by the usage quota.
package advice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/mediq-platform/internal/accounts"
	"github.com/wolfman30/mediq-platform/internal/observability/metrics"
	"github.com/wolfman30/mediq-platform/internal/quota"
	"github.com/wolfman30/mediq-platform/pkg/logging"
)

var adviceTracer = otel.Tracer("mediq.internal.advice")

// ApologyMessage is returned in place of advice when the provider fails.
const ApologyMessage = "I'm having trouble reaching the medical assistant right now. Please try again in a moment."

const maxMessageLength = 4000

const triagePrompt = `You are MedIQ, a medical triage assistant.
Assess the described symptoms and recommend one next step: self-care, see a doctor, or seek emergency care.
Reply with the likely causes (at most two), the recommended action and one immediate relief tip.
Ask at most one clarifying question before giving an assessment. Keep replies short and direct.
Only add a safety warning when the symptoms suggest an emergency.`

// ErrInvalidInput is returned for empty or oversized messages.
var ErrInvalidInput = errors.New("advice: invalid input")

// PlanLookup resolves the subscription tier in force for a user.
type PlanLookup interface {
	PlanFor(ctx context.Context, userID uuid.UUID) (accounts.Plan, error)
}

// Options tune provider calls.
type Options struct {
	MaxTokens int32
	Timeout   time.Duration
}

// Answer is the reply to one question.
type Answer struct {
	Reply    string `json:"response"`
	Degraded bool   `json:"degraded,omitempty"`
}

// Service runs questions through the quota gate and the provider.
type Service struct {
	client  Client
	gate    *quota.Gate
	plans   PlanLookup
	opts    Options
	logger  *logging.Logger
	metrics *metrics.ConsultMetrics
}

func NewService(client Client, gate *quota.Gate, plans PlanLookup, opts Options, logger *logging.Logger) *Service {
	if client == nil || gate == nil || plans == nil {
		panic("advice: client, gate and plan lookup required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{client: client, gate: gate, plans: plans, opts: opts, logger: logger}
}

// SetMetrics attaches Prometheus collectors.
func (s *Service) SetMetrics(m *metrics.ConsultMetrics) {
	s.metrics = m
}

type providerError struct{ err error }

func (e providerError) Error() string { return e.err.Error() }
func (e providerError) Unwrap() error { return e.err }

// Ask answers message for userID. Quota refusals are returned as errors;
// provider failures yield ApologyMessage and are not counted.
func (s *Service) Ask(ctx context.Context, userID uuid.UUID, message string) (Answer, error) {
	ctx, span := adviceTracer.Start(ctx, "advice.ask")
	defer span.End()
	span.SetAttributes(attribute.String("mediq.user_id", userID.String()))

	message = strings.TrimSpace(message)
	if message == "" {
		return Answer{}, fmt.Errorf("%w: message cannot be empty", ErrInvalidInput)
	}
	if len(message) > maxMessageLength {
		return Answer{}, fmt.Errorf("%w: message longer than %d characters", ErrInvalidInput, maxMessageLength)
	}

	plan, err := s.plans.PlanFor(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return Answer{}, err
	}

	var reply string
	err = s.gate.Do(ctx, userID, plan, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		started := time.Now()
		resp, err := s.client.Complete(callCtx, Request{
			System:      []string{triagePrompt},
			Messages:    []Message{{Role: RoleUser, Content: message}},
			MaxTokens:   s.opts.MaxTokens,
			Temperature: -1,
		})
		status := "ok"
		if err == nil && strings.TrimSpace(resp.Text) == "" {
			err = errors.New("advice: provider returned empty text")
		}
		if err != nil {
			status = "error"
		}
		s.metrics.ObserveAdviceLatency(status, time.Since(started).Seconds())
		if err != nil {
			return providerError{err: err}
		}
		reply = resp.Text
		return nil
	})

	var perr providerError
	if errors.As(err, &perr) {
		span.RecordError(perr.err)
		s.logger.Error("advice provider failed", "user_id", userID, "error", perr.err)
		return Answer{Reply: ApologyMessage, Degraded: true}, nil
	}
	if err != nil {
		span.RecordError(err)
		return Answer{}, err
	}
	return Answer{Reply: reply}, nil
}
