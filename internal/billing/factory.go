package billing

import (
	"sync"

	"github.com/lexohub/lexsync/internal/config"
	"github.com/lexohub/lexsync/internal/models"
)

// Factory produces and caches billing strategies by model tag.
// Strategies are stateless, so one instance per model is shared.
// Construct a Factory explicitly and pass it where needed; there is no
// package-level singleton.
type Factory struct {
	mu    sync.Mutex
	cache map[models.BillingModel]Strategy
	cfg   config.BillingConfig
}

// NewFactory creates a strategy factory.
func NewFactory(cfg config.BillingConfig) *Factory {
	return &Factory{
		cache: make(map[models.BillingModel]Strategy),
		cfg:   cfg,
	}
}

// Strategy returns the strategy for a billing model. Unknown models
// fall back to brief fee, the practice default.
func (f *Factory) Strategy(model models.BillingModel) Strategy {
	switch model {
	case models.BillingTimeBased, models.BillingQuickOpinion:
	default:
		model = models.BillingBriefFee
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if s, ok := f.cache[model]; ok {
		return s
	}

	var s Strategy
	switch model {
	case models.BillingTimeBased:
		s = &TimeBasedStrategy{}
	case models.BillingQuickOpinion:
		s = NewQuickOpinionStrategy(QuickOpinionConfig{
			MinFee:         f.cfg.QuickOpinionMinFee,
			MaxFee:         f.cfg.QuickOpinionMaxFee,
			TurnaroundDays: f.cfg.QuickOpinionTurnaround,
		})
	default:
		s = &BriefFeeStrategy{}
	}

	f.cache[model] = s
	return s
}

// ForMatter returns the strategy for a matter's billing model.
func (f *Factory) ForMatter(matter *models.Matter) Strategy {
	return f.Strategy(matter.Model())
}

// ClearCache drops cached instances; used by tests and after
// reconfiguration.
func (f *Factory) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = make(map[models.BillingModel]Strategy)
}
