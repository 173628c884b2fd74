package preview

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/profile-preview/internal/profile"
)

// Config assembles a Service.
type Config struct {
	Site         Site
	Store        profile.Store
	Shell        ShellSource
	FetchTimeout time.Duration
	// ExtraBotAgents extends DefaultBotAgents with literal tokens.
	ExtraBotAgents []string
	// PublicStatuses restricts which listing states are rendered with their
	// own data; other states render with site defaults. Empty renders all.
	PublicStatuses []profile.Status
	Logger         *zap.Logger
}

// Request is one inbound preview request.
type Request struct {
	Segment   string
	UserAgent string
}

// Result is a rendered preview.
type Result struct {
	Audience Audience
	BotToken string
	Key      profile.Key
	Found    bool
	Meta     Meta
	Body     string
}

// ServedEvent describes a preview handed to a crawler.
type ServedEvent struct {
	EventID    string    `json:"event_id"`
	Identifier string    `json:"identifier"`
	Field      string    `json:"field"`
	Bot        string    `json:"bot"`
	Found      bool      `json:"found"`
	Status     int       `json:"status"`
	ServedAt   time.Time `json:"served_at"`
}

// Service runs the classify, resolve, fetch, extract and build steps for a
// single site.
type Service struct {
	classifier *Classifier
	fetcher    *Fetcher
	extractor  *Extractor
	builder    *Builder
	public     map[profile.Status]struct{}
	logger     *zap.Logger
}

// NewService builds a Service from cfg.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var public map[profile.Status]struct{}
	if len(cfg.PublicStatuses) > 0 {
		public = make(map[profile.Status]struct{}, len(cfg.PublicStatuses))
		for _, st := range cfg.PublicStatuses {
			public[st] = struct{}{}
		}
	}
	return &Service{
		classifier: NewClassifier(cfg.ExtraBotAgents...),
		fetcher:    NewFetcher(cfg.Store, cfg.FetchTimeout),
		extractor:  NewExtractor(cfg.Site),
		builder:    NewBuilder(cfg.Site, cfg.Shell, logger.Named("builder")),
		public:     public,
		logger:     logger,
	}
}

// Audience reports which document variant userAgent would receive.
func (s *Service) Audience(userAgent string) Audience {
	return s.classifier.Classify(userAgent)
}

// Render produces the preview document for req. Errors are ErrInvalidIdentifier
// or wrap ErrUpstream; a missing profile is not an error.
func (s *Service) Render(ctx context.Context, req Request) (Result, error) {
	if err := ValidateIdentifier(req.Segment); err != nil {
		return Result{}, err
	}
	res := Result{Audience: AudienceHuman}
	if token, ok := s.classifier.Match(req.UserAgent); ok {
		res.Audience = AudienceCrawler
		res.BotToken = token
	}

	key, rec, err := s.lookup(ctx, req.Segment)
	res.Key = key
	if err != nil {
		return res, err
	}
	res.Found = rec != nil
	res.Meta = s.extractor.Extract(rec, req.Segment)
	res.Body = s.builder.Build(ctx, res.Meta, res.Audience)
	return res, nil
}

// Meta resolves and fetches segment and returns its display fields without
// building a document.
func (s *Service) Meta(ctx context.Context, segment string) (Meta, bool, error) {
	if err := ValidateIdentifier(segment); err != nil {
		return Meta{}, false, err
	}
	_, rec, err := s.lookup(ctx, segment)
	if err != nil {
		return Meta{}, false, err
	}
	return s.extractor.Extract(rec, segment), rec != nil, nil
}

func (s *Service) lookup(ctx context.Context, segment string) (profile.Key, *profile.Record, error) {
	key := ResolveIdentifier(segment)
	rec, err := s.fetcher.Fetch(ctx, key)
	if err != nil {
		return key, nil, err
	}
	if rec != nil && !s.renderable(rec.Status) {
		s.logger.Debug("profile not public, rendering defaults",
			zap.String("field", string(key.Field)),
			zap.String("value", key.Value),
			zap.String("status", string(rec.Status)),
		)
		return key, nil, nil
	}
	return key, rec, nil
}

func (s *Service) renderable(status profile.Status) bool {
	if s.public == nil {
		return true
	}
	_, ok := s.public[status]
	return ok
}
