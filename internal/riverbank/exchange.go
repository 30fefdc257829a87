package riverbank

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"riverbank/internal/model"
)

// Service is the orchestration layer behind every public operation: it runs
// the rate limit, validation and moderation gates and coordinates the store.
type Service struct {
	store     Store
	moderator Moderator
	limiter   RateLimiter
	sealer    OriginSealer
	policy    ReportPolicy
	logger    Logger
	clock     Clock
	idgen     IDGenerator
}

// Option customises a Service.
type Option func(*Service)

// WithOriginSealer seals origin addresses before they are persisted.
func WithOriginSealer(sealer OriginSealer) Option {
	return func(s *Service) { s.sealer = sealer }
}

// WithReportPolicy sets the policy consulted after each report.
func WithReportPolicy(policy ReportPolicy) Option {
	return func(s *Service) { s.policy = policy }
}

// NewService creates a new Service with the provided dependencies.
// A nil moderator accepts everything and a nil limiter never limits.
func NewService(store Store, moderator Moderator, limiter RateLimiter, logger Logger, clock Clock, idgen IDGenerator, opts ...Option) *Service {
	if moderator == nil {
		moderator = AllowAllModerator{}
	}
	if limiter == nil {
		limiter = NoLimit{}
	}
	s := &Service{
		store:     store,
		moderator: moderator,
		limiter:   limiter,
		sealer:    PlainOrigins{},
		policy:    NeverWithdraw{},
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ThrowRequest is a bottle submission.
type ThrowRequest struct {
	Message  string
	Nickname string
	Country  string
	Origin   string
}

// ThrowResult is returned for an accepted bottle.
type ThrowResult struct {
	Sent     bool
	Bottle   *model.Bottle
	Received []model.PublicBottle
}

// Throw accepts a new bottle and returns a random sample of other active
// bottles in exchange. The gates run in order: rate limit, validation,
// moderation. A rejection at any gate leaves no trace in the store.
// The sample holds between 1 and 3 bottles depending on the message length,
// fewer if the river does not have enough.
func (s *Service) Throw(ctx context.Context, req ThrowRequest) (*ThrowResult, error) {
	if err := s.checkLimit(ctx, ActionThrow, req.Origin); err != nil {
		return nil, err
	}

	message := strings.TrimSpace(req.Message)
	nickname := strings.TrimSpace(req.Nickname)
	if err := Validate(message, nickname); err != nil {
		return nil, err
	}
	count := BottlesToReceive(utf8.RuneCountInString(message))

	if verdict := s.moderator.Moderate(ctx, message, nickname); verdict == Unsafe {
		s.logger.Info("bottle rejected by moderation", "origin", req.Origin)
		return nil, ErrModerationRejected
	}

	origin, err := s.sealer.Seal(req.Origin)
	if err != nil {
		return nil, fmt.Errorf("sealing origin: %w", err)
	}

	bottle := &model.Bottle{
		ID:             s.idgen.New(),
		Message:        message,
		Nickname:       nickname,
		Country:        strings.TrimSpace(req.Country),
		OriginAddress:  origin,
		Status:         model.StatusActive,
		ReactionCounts: map[string]int64{},
		CreatedAt:      s.clock.Now(),
	}
	if err := s.store.CreateBottle(ctx, bottle); err != nil {
		return nil, fmt.Errorf("creating bottle: %w", err)
	}

	sampled, err := s.store.SampleActiveBottles(ctx, bottle.ID, count)
	if err != nil {
		return nil, fmt.Errorf("sampling bottles: %w", err)
	}

	received := make([]model.PublicBottle, 0, len(sampled))
	for _, b := range sampled {
		received = append(received, b.Public())
	}

	s.logger.Info("bottle thrown", "id", bottle.ID, "sequence", bottle.SequenceNumber, "received", len(received))
	return &ThrowResult{Sent: true, Bottle: bottle, Received: received}, nil
}

// Stats returns aggregate counts from the store.
func (s *Service) Stats(ctx context.Context) (*model.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}
	return stats, nil
}

// checkLimit consults the rate limiter. A limiter that cannot answer lets the
// request through.
func (s *Service) checkLimit(ctx context.Context, action Action, origin string) error {
	key := RateLimitKey(action, origin)
	allowed, err := s.limiter.Limit(ctx, key)
	if err != nil {
		s.logger.Warn("rate limiter unavailable, allowing request", "key", key, "error", err)
		return nil
	}
	if !allowed {
		s.logger.Debug("rate limited", "key", key)
		return ErrRateLimited
	}
	return nil
}
