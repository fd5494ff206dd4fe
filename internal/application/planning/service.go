package planning

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/topk-planner/internal/domain/catalog"
	"github.com/turtacn/topk-planner/internal/domain/preference"
	"github.com/turtacn/topk-planner/internal/domain/recommendation"
	"github.com/turtacn/topk-planner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/topk-planner/pkg/errors"
)

// Outcome labels reported to Metrics.
const (
	OutcomeOK       = "ok"
	OutcomeNoPlan   = "no_plan"
	OutcomeTimedOut = "timed_out"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// EventPublisher receives a notification after each successful
// recommendation.  Failures are logged and never fail the request.
type EventPublisher interface {
	PublishPlansGenerated(ctx context.Context, event *PlansGeneratedEvent) error
}

// Metrics records request-level outcomes.
type Metrics interface {
	ObserveRecommendation(outcome string, d time.Duration, plans int)
}

// Service is the application entry point shared by the HTTP, CLI and Kafka
// transports.
type Service interface {
	Recommend(ctx context.Context, req *RecommendRequest) (*RecommendResponse, error)
	// RecommendBatch runs reqs concurrently and returns one item per request
	// in input order.  One failure never aborts the others.
	RecommendBatch(ctx context.Context, reqs []*RecommendRequest) []BatchItem
	// RecommendForProfile plans against the default catalog.
	RecommendForProfile(ctx context.Context, profile string, cons recommendation.Constraints, topK int) (*RecommendResponse, error)
	ListProfiles(ctx context.Context) []preference.Profile

	ListCatalogs(ctx context.Context) ([]catalog.Summary, error)
	GetCatalog(ctx context.Context, id string) (*CatalogView, error)
	SaveCatalog(ctx context.Context, req *SaveCatalogRequest) (*catalog.Summary, error)
}

// ServiceConfig wires a Service.  Publisher and Metrics are optional.
type ServiceConfig struct {
	Generator *TopKPlanGenerator
	Catalogs  catalog.Repository
	Profiles  *preference.Registry
	Publisher EventPublisher
	Metrics   Metrics
	Logger    logging.Logger

	DefaultTopK      int
	MaxTopK          int
	DefaultTimeout   time.Duration
	BatchConcurrency int
	DefaultCatalogID string
}

type serviceImpl struct {
	cfg    ServiceConfig
	logger logging.Logger
}

// NewService validates cfg and returns a Service.
func NewService(cfg ServiceConfig) (Service, error) {
	if cfg.Generator == nil {
		return nil, errors.InvalidParam("generator cannot be nil")
	}
	if cfg.Catalogs == nil {
		return nil, errors.InvalidParam("catalog repository cannot be nil")
	}
	if cfg.Profiles == nil {
		cfg.Profiles = preference.DefaultRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.DefaultTopK < 1 {
		cfg.DefaultTopK = 2
	}
	if cfg.MaxTopK < cfg.DefaultTopK {
		cfg.MaxTopK = cfg.DefaultTopK
	}
	if cfg.BatchConcurrency < 1 {
		cfg.BatchConcurrency = 1
	}
	if cfg.DefaultCatalogID == "" {
		cfg.DefaultCatalogID = catalog.SampleCatalogID
	}
	return &serviceImpl{
		cfg:    cfg,
		logger: cfg.Logger.Named("planning"),
	}, nil
}

func (s *serviceImpl) Recommend(ctx context.Context, req *RecommendRequest) (*RecommendResponse, error) {
	start := time.Now()
	resp, err := s.recommend(ctx, req, start)
	s.observe(resp, err, time.Since(start))
	return resp, err
}

func (s *serviceImpl) recommend(ctx context.Context, req *RecommendRequest, start time.Time) (*RecommendResponse, error) {
	if req == nil {
		return nil, errors.InvalidConfig("request cannot be nil")
	}
	if err := ValidateStruct(req); err != nil {
		return nil, err
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := s.logger.With(logging.String("request_id", requestID))

	topK := s.cfg.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK < 1 || topK > s.cfg.MaxTopK {
		return nil, errors.InvalidConfig("top_k out of range").
			WithDetail(fmt.Sprintf("top_k=%d allowed=1..%d", topK, s.cfg.MaxTopK))
	}

	cat, catalogID, err := s.catalogFor(ctx, req)
	if err != nil {
		return nil, err
	}
	resolver, err := s.cfg.Profiles.Resolve(cat, req.Profile, req.Preferences)
	if err != nil {
		return nil, err
	}
	cons := req.Constraints.Resolve()

	timeout := s.cfg.DefaultTimeout
	if req.TimeoutMS > 0 {
		timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := s.cfg.Generator.Generate(ctx, GenerateInput{
		Catalog:     cat,
		Resolver:    resolver,
		Constraints: cons,
		TopK:        topK,
	})
	if err != nil {
		logger.Error("recommendation failed", logging.Err(err), logging.String("catalog_id", catalogID))
		return nil, err
	}

	resp := &RecommendResponse{
		RequestID:      requestID,
		CatalogID:      catalogID,
		Profile:        req.Profile,
		Plans:          res.Plans,
		NoFeasiblePlan: res.NoFeasiblePlan,
		Termination:    res.Termination,
		Rounds:         res.Rounds,
		Warnings:       res.Warnings,
		Constraints:    cons,
		GeneratedAt:    time.Now().UTC(),
		ElapsedMS:      time.Since(start).Milliseconds(),
		catalog:        cat,
		resolver:       resolver,
	}

	fields := []logging.Field{
		logging.String("catalog_id", catalogID),
		logging.Int("top_k", topK),
		logging.Int("plans", len(resp.Plans)),
		logging.String("termination", string(resp.Termination)),
		logging.Int64("elapsed_ms", resp.ElapsedMS),
	}
	if len(resp.Plans) > 0 {
		fields = append(fields, logging.Float64("best_objective", resp.Plans[0].ObjectiveValue))
	}
	logger.Info("recommendation generated", fields...)

	s.publish(ctx, resp, logger)
	return resp, nil
}

// catalogFor picks the inline items, the named catalog, or the default one.
func (s *serviceImpl) catalogFor(ctx context.Context, req *RecommendRequest) (*catalog.Catalog, string, error) {
	if req.Items != nil {
		if len(req.Items) == 0 {
			return nil, "", errors.InvalidConfig("catalog must contain at least one item")
		}
		if req.CatalogID != "" {
			return nil, "", errors.InvalidConfig("items and catalog_id are mutually exclusive")
		}
		items := make([]catalog.Item, len(req.Items))
		for i, in := range req.Items {
			items[i] = in.ToItem()
		}
		c, err := catalog.NewCatalog(items)
		return c, "", err
	}
	id := req.CatalogID
	if id == "" {
		id = s.cfg.DefaultCatalogID
	}
	c, err := s.cfg.Catalogs.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return c, id, nil
}

func (s *serviceImpl) publish(ctx context.Context, resp *RecommendResponse, logger logging.Logger) {
	if s.cfg.Publisher == nil {
		return
	}
	event := &PlansGeneratedEvent{
		EventID:        uuid.NewString(),
		RequestID:      resp.RequestID,
		CatalogID:      resp.CatalogID,
		Profile:        resp.Profile,
		Plans:          resp.Plans,
		NoFeasiblePlan: resp.NoFeasiblePlan,
		Termination:    resp.Termination,
		OccurredAt:     resp.GeneratedAt,
	}
	// The solve may have used up the request deadline; publishing gets its own.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.cfg.Publisher.PublishPlansGenerated(pubCtx, event); err != nil {
		logger.Warn("failed to publish plans event", logging.Err(err), logging.String("event_id", event.EventID))
	}
}

func (s *serviceImpl) observe(resp *RecommendResponse, err error, d time.Duration) {
	if s.cfg.Metrics == nil {
		return
	}
	outcome, plans := OutcomeOK, 0
	switch {
	case errors.IsInvalidConfig(err) || errors.IsNotFound(err):
		outcome = OutcomeInvalid
	case err != nil:
		outcome = OutcomeError
	case resp.Termination == recommendation.TerminationTimedOut:
		outcome, plans = OutcomeTimedOut, len(resp.Plans)
	case resp.NoFeasiblePlan:
		outcome = OutcomeNoPlan
	default:
		plans = len(resp.Plans)
	}
	s.cfg.Metrics.ObserveRecommendation(outcome, d, plans)
}

func (s *serviceImpl) RecommendBatch(ctx context.Context, reqs []*RecommendRequest) []BatchItem {
	out := make([]BatchItem, len(reqs))
	var g errgroup.Group
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			out[i].Index = i
			if err := ctx.Err(); err != nil {
				out[i].Err = batchContextError(err)
				return nil
			}
			out[i].Response, out[i].Err = s.Recommend(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// batchContextError reports a batch item that never started.
func batchContextError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrCodeSolveTimedOut, "batch deadline expired before the request started")
	}
	return errors.Wrap(err, errors.ErrCodeOracleInternal, "batch cancelled before the request started")
}

func (s *serviceImpl) RecommendForProfile(ctx context.Context, profile string, cons recommendation.Constraints, topK int) (*RecommendResponse, error) {
	return s.Recommend(ctx, &RecommendRequest{
		CatalogID:   s.cfg.DefaultCatalogID,
		Profile:     profile,
		Constraints: ConstraintsInputFrom(cons),
		TopK:        &topK,
	})
}

func (s *serviceImpl) ListProfiles(_ context.Context) []preference.Profile {
	return s.cfg.Profiles.List()
}

func (s *serviceImpl) ListCatalogs(ctx context.Context) ([]catalog.Summary, error) {
	return s.cfg.Catalogs.List(ctx)
}

func (s *serviceImpl) GetCatalog(ctx context.Context, id string) (*CatalogView, error) {
	if id == "" {
		return nil, errors.InvalidConfig("catalog id is required")
	}
	c, err := s.cfg.Catalogs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CatalogView{ID: id, Items: c.Items()}, nil
}

func (s *serviceImpl) SaveCatalog(ctx context.Context, req *SaveCatalogRequest) (*catalog.Summary, error) {
	if req == nil {
		return nil, errors.InvalidConfig("request cannot be nil")
	}
	if err := ValidateStruct(req); err != nil {
		return nil, err
	}
	c, err := req.Catalog()
	if err != nil {
		return nil, err
	}
	if err := s.cfg.Catalogs.Save(ctx, req.ID, req.Name, c); err != nil {
		return nil, err
	}
	s.logger.Info("catalog saved", logging.String("catalog_id", req.ID), logging.Int("items", c.Len()))
	return &catalog.Summary{ID: req.ID, Name: req.Name, ItemCount: c.Len(), UpdatedAt: time.Now().UTC()}, nil
}

var structValidator = validator.New()

// ValidateStruct runs the validate tags of v and reports every failing field
// as one InvalidConfig error.
func ValidateStruct(v interface{}) error {
	err := structValidator.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Wrap(err, errors.ErrCodeInvalidConfig, "invalid request")
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return errors.InvalidConfig("invalid request").WithDetail(strings.Join(parts, "; "))
}
