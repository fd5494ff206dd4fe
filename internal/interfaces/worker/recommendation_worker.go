// Package worker serves recommendation requests that arrive over Kafka.
package worker

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/turtacn/topk-planner/internal/application/planning"
	"github.com/turtacn/topk-planner/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/topk-planner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/topk-planner/pkg/errors"
)

// Outcomes passed to Recorder.WorkerMessage.
const (
	OutcomeOK           = "ok"
	OutcomeRejected     = "rejected"
	OutcomeMalformed    = "malformed"
	OutcomePublishError = "publish_error"
)

// EventTypeRecommendationRequest marks enveloped requests.  Bare
// RecommendRequest JSON is accepted as well.
const EventTypeRecommendationRequest = "recommendation.request"

// Recorder counts handled messages.
type Recorder interface {
	WorkerMessage(outcome string)
}

// ResultError describes a request the service refused or failed.
type ResultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Result is the payload of every message written to the result topic.
// Exactly one of Response and Error is set.
type Result struct {
	RequestID string                      `json:"request_id"`
	Response  *planning.RecommendResponse `json:"response,omitempty"`
	Error     *ResultError                `json:"error,omitempty"`
}

// Config configures a RecommendationWorker.
type Config struct {
	ResultTopic string
	Recorder    Recorder
	Logger      logging.Logger
}

// RecommendationWorker turns request messages into result messages.
//
// Every request gets exactly one result.  Requests the service rejects and
// messages that cannot be decoded produce an error result and are not
// retried.  Only a failed result publish is returned to the consumer, which
// retries it and eventually dead-letters the request.
type RecommendationWorker struct {
	svc       planning.Service
	publisher kafka.MessagePublisher
	topic     string
	recorder  Recorder
	logger    logging.Logger
}

// NewRecommendationWorker creates a RecommendationWorker.
func NewRecommendationWorker(svc planning.Service, publisher kafka.MessagePublisher, cfg Config) (*RecommendationWorker, error) {
	if svc == nil {
		return nil, errors.InvalidParam("planning service cannot be nil")
	}
	if publisher == nil {
		return nil, errors.InvalidParam("result publisher cannot be nil")
	}
	if cfg.ResultTopic == "" {
		cfg.ResultTopic = kafka.TopicRecommendationResults
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	return &RecommendationWorker{
		svc:       svc,
		publisher: publisher,
		topic:     cfg.ResultTopic,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger.Named("recommendation_worker"),
	}, nil
}

// Register subscribes the worker to topic on c.
func (w *RecommendationWorker) Register(c *kafka.Consumer, topic string) {
	c.Subscribe(topic, w.Handle)
}

// Handle is a kafka.MessageHandler.
func (w *RecommendationWorker) Handle(ctx context.Context, msg *kafka.Message) error {
	start := time.Now()
	req, err := decodeRequest(msg)
	if err != nil {
		requestID := string(msg.Key)
		w.logger.Warn("malformed recommendation request",
			logging.String("request_id", requestID),
			logging.Int64("offset", msg.Offset),
			logging.Err(err))
		return w.finish(ctx, OutcomeMalformed, Result{RequestID: requestID, Error: resultError(err)})
	}

	resp, err := w.svc.Recommend(ctx, req)
	if err != nil {
		w.logger.Info("recommendation request rejected",
			logging.String("request_id", req.RequestID),
			logging.String("code", errors.GetCode(err).String()),
			logging.Err(err))
		return w.finish(ctx, OutcomeRejected, Result{RequestID: req.RequestID, Error: resultError(err)})
	}

	w.logger.Debug("recommendation request served",
		logging.String("request_id", resp.RequestID),
		logging.Int("plans", len(resp.Plans)),
		logging.Duration("elapsed", time.Since(start)))
	return w.finish(ctx, OutcomeOK, Result{RequestID: resp.RequestID, Response: resp})
}

func (w *RecommendationWorker) finish(ctx context.Context, outcome string, res Result) error {
	if err := w.publish(ctx, res); err != nil {
		w.record(OutcomePublishError)
		return err
	}
	w.record(outcome)
	return nil
}

func (w *RecommendationWorker) publish(ctx context.Context, res Result) error {
	env, err := kafka.NewEventEnvelope(kafka.EventTypeRecommendationResult, kafka.EventSource, res)
	if err != nil {
		return err
	}
	out, err := env.ToMessage(w.topic, []byte(res.RequestID))
	if err != nil {
		return err
	}
	if err := w.publisher.Publish(ctx, out); err != nil {
		w.logger.Error("failed to publish recommendation result",
			logging.String("request_id", res.RequestID),
			logging.String("topic", w.topic),
			logging.Err(err))
		return err
	}
	return nil
}

func (w *RecommendationWorker) record(outcome string) {
	if w.recorder != nil {
		w.recorder.WorkerMessage(outcome)
	}
}

// decodeRequest accepts an EventEnvelope carrying a RecommendRequest or the
// bare request.  The request id falls back to the message key, then to the
// envelope id.
func decodeRequest(msg *kafka.Message) (*planning.RecommendRequest, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeSerialization, "empty message value")
	}

	var probe struct {
		EventType string          `json:"event_type"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(msg.Value, &probe); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "request is not valid JSON")
	}

	req := &planning.RecommendRequest{}
	var envelopeID string
	if probe.EventType != "" {
		if probe.EventType != EventTypeRecommendationRequest {
			return nil, errors.New(errors.ErrCodeSerialization, "unexpected event type").WithDetail(probe.EventType)
		}
		env, err := kafka.MessageToEventEnvelope(msg)
		if err != nil {
			return nil, err
		}
		if err := env.DecodePayload(req); err != nil {
			return nil, err
		}
		envelopeID = env.EventID
	} else if err := json.Unmarshal(msg.Value, req); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode request")
	}

	if req.RequestID == "" {
		req.RequestID = string(msg.Key)
	}
	if req.RequestID == "" {
		req.RequestID = envelopeID
	}
	return req, nil
}

func resultError(err error) *ResultError {
	code := errors.GetCode(err)
	out := &ResultError{Code: code.String(), Message: err.Error()}
	var ae *errors.AppError
	if errors.As(err, &ae) {
		out.Message = ae.Message
		out.Detail = ae.Detail
	}
	return out
}
