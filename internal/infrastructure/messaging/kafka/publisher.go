package kafka

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/turtacn/topk-planner/internal/application/planning"
	"github.com/turtacn/topk-planner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/topk-planner/pkg/errors"
)

// Publish outcomes reported to EventRecorder.
const (
	PublishOK       = "ok"
	PublishError    = "error"
	PublishRejected = "rejected"
)

// EventSource is the envelope source of events written by the planner.
const EventSource = "topk-planner"

// EventRecorder counts publish attempts by outcome.
type EventRecorder interface {
	EventPublished(result string)
}

// BreakerConfig tunes the circuit breaker in front of the broker.
type BreakerConfig struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests are let through while probing.
	HalfOpenRequests uint32
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenRequests == 0 {
		c.HalfOpenRequests = 1
	}
	return c
}

// PlanEventPublisher writes PlansGeneratedEvents to a topic.  While the
// breaker is open events are dropped without touching the broker.
type PlanEventPublisher struct {
	producer MessagePublisher
	topic    string
	breaker  *gobreaker.CircuitBreaker[struct{}]
	recorder EventRecorder
	logger   logging.Logger
}

var _ planning.EventPublisher = (*PlanEventPublisher)(nil)

// NewPlanEventPublisher returns a publisher writing to topic.  recorder and
// logger may be nil.
func NewPlanEventPublisher(producer MessagePublisher, topic string, bc BreakerConfig, recorder EventRecorder, logger logging.Logger) *PlanEventPublisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Named("plan_events")
	bc = bc.withDefaults()

	settings := gobreaker.Settings{
		Name:        "plan-events",
		MaxRequests: bc.HalfOpenRequests,
		Timeout:     bc.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()))
		},
	}
	return &PlanEventPublisher{
		producer: producer,
		topic:    topic,
		breaker:  gobreaker.NewCircuitBreaker[struct{}](settings),
		recorder: recorder,
		logger:   logger,
	}
}

// PublishPlansGenerated encodes event and writes it keyed by request id.
func (p *PlanEventPublisher) PublishPlansGenerated(ctx context.Context, event *planning.PlansGeneratedEvent) error {
	if event == nil {
		return errors.New(errors.ErrCodeValidation, "nil event")
	}
	env, err := NewEventEnvelope(EventTypePlansGenerated, EventSource, event)
	if err != nil {
		p.record(PublishError)
		return err
	}
	if event.EventID != "" {
		env.EventID = event.EventID
	}
	msg, err := env.ToMessage(p.topic, []byte(event.RequestID))
	if err != nil {
		p.record(PublishError)
		return err
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.producer.Publish(ctx, msg)
	})
	switch {
	case err == nil:
		p.record(PublishOK)
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		p.record(PublishRejected)
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "plan event publishing suspended")
	default:
		p.record(PublishError)
		return err
	}
}

// State returns the breaker state name.
func (p *PlanEventPublisher) State() string {
	return p.breaker.State().String()
}

func (p *PlanEventPublisher) record(result string) {
	if p.recorder != nil {
		p.recorder.EventPublished(result)
	}
}
