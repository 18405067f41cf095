package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"stockflow/backend/internal/cache"
	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/logger"
	"stockflow/backend/internal/metrics"
	"stockflow/backend/internal/printing"
	"stockflow/backend/internal/store"
	"stockflow/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Cache    cache.ItemCache
	CacheTTL time.Duration
	Metrics  *metrics.Metrics
	Logger   *logger.Logger

	Shop             printing.Shop
	PhoneCountryCode string
	PublicBaseURL    string
	MaxLabels        int
	CartIdle         time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

type Service struct {
	repo     store.Repository
	cache    cache.ItemCache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	log      *logger.Logger
	validate *validator.Validate
	now      func() time.Time

	shop          printing.Shop
	countryCode   string
	publicBaseURL string
	maxLabels     int
	cartIdle      time.Duration

	cartsMu sync.Mutex
	carts   map[string]*cartSession
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = cache.NoopItemCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Shop.Location == nil {
		opts.Shop.Location = time.UTC
	}
	if opts.MaxLabels < 1 {
		opts.MaxLabels = 60
	}
	if opts.CartIdle <= 0 {
		opts.CartIdle = 4 * time.Hour
	}

	return &Service{
		repo:          repo,
		cache:         opts.Cache,
		cacheTTL:      opts.CacheTTL,
		metrics:       opts.Metrics,
		log:           opts.Logger,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		now:           opts.Now,
		shop:          opts.Shop,
		countryCode:   opts.PhoneCountryCode,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		maxLabels:     opts.MaxLabels,
		cartIdle:      opts.CartIdle,
		carts:         make(map[string]*cartSession),
	}
}

// Location is the shop's business timezone used for day boundaries.
func (s *Service) Location() *time.Location {
	return s.shop.Location
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	// No date means the trailing 24 hours, inclusive of now.
	to := s.now().UTC().Add(time.Second)
	from := to.Add(-24 * time.Hour)
	if strings.TrimSpace(date) != "" {
		day, err := s.parseDay(date)
		if err != nil {
			return nil, err
		}
		from, to = day, day.AddDate(0, 0, 1)
	}

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// Audit records an action taken outside the service, such as user management.
func (s *Service) Audit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	s.logAudit(ctx, action, entityType, entityID, detail)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New(),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		s.log.Warn(s.log.WithFields(ctx, map[string]any{
			"action": action,
			"entity": entityType + "/" + entityID,
		}), "failed to write audit log", err)
	}
}

func requireRole(ctx context.Context, roles ...string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return fmt.Errorf("no actor on request: %w", domain.ErrForbidden)
	}
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%s role required: %w", strings.Join(roles, " or "), domain.ErrForbidden)
}

func actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.Username
	}
	return ""
}

// check runs struct validation and folds failures into ErrInvalidInput.
func (s *Service) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %s: %w", strings.ToLower(fe.Field()), fe.Tag(), domain.ErrInvalidInput)
		}
		return fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
	}
	return nil
}

// parseDay parses YYYY-MM-DD as local midnight in the shop timezone.
func (s *Service) parseDay(date string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(date), s.shop.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", domain.ErrInvalidInput)
	}
	return day, nil
}
