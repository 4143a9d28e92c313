package fridgerank

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/cognicore/fridgerank/pkg/fridgerank/config"
	"github.com/cognicore/fridgerank/pkg/fridgerank/fallback"
	"github.com/cognicore/fridgerank/pkg/fridgerank/internalerr"
	"github.com/cognicore/fridgerank/pkg/fridgerank/match"
	"github.com/cognicore/fridgerank/pkg/fridgerank/metrics"
	"github.com/cognicore/fridgerank/pkg/fridgerank/rank"
	"github.com/cognicore/fridgerank/pkg/fridgerank/snapshot"
	"github.com/cognicore/fridgerank/pkg/fridgerank/store"
)

// Engine is the recommendation facade. It is safe for concurrent use.
type Engine struct {
	providers snapshot.Providers
	searcher  fallback.Searcher
	scorer    *rank.Scorer
	tiers     config.TiersConfig
	logger    zerolog.Logger
	metrics   *metrics.Collector
	now       func() time.Time
}

// Options configures an Engine
type Options struct {
	// Store, when set, backs every provider not set in Providers.
	Store     store.Store
	Providers snapshot.Providers
	// Searcher serves the global search tier. Nil disables it.
	Searcher fallback.Searcher
	// Config defaults to config.Default(). It must pass Validate.
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Collector
	// Now defaults to time.Now.
	Now func() time.Time
}

// New creates an Engine with the given dependencies. It fails with
// internalerr.ErrInvalidConfig when the config is invalid or a data
// provider is missing.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := opts.Providers
	if opts.Store != nil {
		if p.Inventory == nil {
			p.Inventory = opts.Store
		}
		if p.History == nil {
			p.History = opts.Store
		}
		if p.Profiles == nil {
			p.Profiles = opts.Store
		}
		if p.Candidates == nil {
			p.Candidates = opts.Store
		}
		if p.Urgent == nil {
			p.Urgent = opts.Store
		}
	}

	for _, c := range []struct {
		name    string
		missing bool
	}{
		{"inventory", p.Inventory == nil},
		{"history", p.History == nil},
		{"flavor profile", p.Profiles == nil},
		{"candidates", p.Candidates == nil},
		{"urgent items", p.Urgent == nil},
	} {
		if c.missing {
			return nil, fmt.Errorf("%w: no %s provider", internalerr.ErrInvalidConfig, c.name)
		}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	weights := rank.Weights{
		Expiry:   cfg.Scoring.WeightExpiry,
		Flavor:   cfg.Scoring.WeightFlavor,
		Familiar: cfg.Scoring.WeightFamiliar,
	}

	return &Engine{
		providers: p,
		searcher:  opts.Searcher,
		scorer:    rank.NewScorer(weights, cfg.Scoring.HorizonDays),
		tiers:     cfg.Tiers,
		logger:    opts.Logger.With().Str("component", "fridgerank").Logger(),
		metrics:   opts.Metrics,
		now:       now,
	}, nil
}

// Request defines a recommendation query
type Request struct {
	UserID string
	// MaxPerTier caps each tier. 0 means the configured default.
	MaxPerTier int
	// IncludeTier5 enables the global search fallback. Nil means true.
	IncludeTier5 *bool
}

// ScoredRecipe is one recommended recipe
type ScoredRecipe struct {
	RecipeID           string     `json:"recipe_id"`
	Title              string     `json:"title"`
	Tier               match.Tier `json:"tier"`
	RelevanceScore     float64    `json:"relevance_score"`
	MatchPercentage    float64    `json:"match_percentage"`
	MissingIngredients []string   `json:"missing_ingredients"`
	ExpiryUrgency      float64    `json:"expiry_urgency"`
	FlavorAffinity     float64    `json:"flavor_affinity"`
	IsComfort          bool       `json:"is_comfort"`
	Cuisine            string     `json:"cuisine,omitempty"`
	PrepTimeMinutes    int        `json:"prep_time_minutes,omitempty"`
	ImageURL           string     `json:"image_url,omitempty"`
}

// Response contains grouped recommendations
type Response struct {
	RequestID    string                        `json:"request_id"`
	UserID       string                        `json:"user_id"`
	GeneratedAt  time.Time                     `json:"generated_at"`
	Tiers        map[match.Tier][]ScoredRecipe `json:"tiers"`
	UrgentItems  []store.UrgentItem            `json:"urgent_items"`
	TotalRecipes int                           `json:"total_recipes"`
}

// Generate loads the user's data and runs the tier pipeline.
//
// Invalid requests fail with internalerr.ErrInvalidInput; provider failures
// with a *internalerr.DataAccessError. A failing fallback search never
// fails the request.
func (e *Engine) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	maxPerTier, include, err := e.normalize(req)
	if err != nil {
		e.metrics.ObserveRequest("invalid", time.Since(start))
		return Response{}, err
	}

	requestID := ulid.Make().String()
	log := e.logger.With().Str("user_id", req.UserID).Str("request_id", requestID).Logger()
	ctx = log.WithContext(ctx)

	asOf := e.now()
	snap, err := snapshot.Load(ctx, e.providers, req.UserID, asOf, snapshot.Options{
		MaxMissing:       match.MaxMissing,
		UrgentWindowDays: e.tiers.UrgentWindowDays,
	})
	if err != nil {
		log.Error().Err(err).Msg("snapshot load failed")
		e.metrics.ObserveRequest("data_error", time.Since(start))
		return Response{}, err
	}

	resp := e.Assemble(ctx, snap, maxPerTier, include)
	resp.RequestID = requestID
	resp.UserID = req.UserID
	resp.GeneratedAt = asOf.UTC()

	for _, tier := range match.Tiers {
		e.metrics.SetTierCount(int(tier), len(resp.Tiers[tier]))
	}
	e.metrics.ObserveRequest("ok", time.Since(start))

	log.Debug().
		Int("candidates", len(snap.Candidates)).
		Int("total_recipes", resp.TotalRecipes).
		Dur("took", time.Since(start)).
		Msg("recommendations generated")

	return resp, nil
}

func (e *Engine) normalize(req Request) (int, bool, error) {
	if req.UserID == "" {
		return 0, false, fmt.Errorf("%w: user id is required", internalerr.ErrInvalidInput)
	}

	hardCap := e.tiers.HardCap
	if hardCap <= 0 || hardCap > config.AbsoluteMaxPerTier {
		hardCap = config.AbsoluteMaxPerTier
	}
	maxPerTier := req.MaxPerTier
	switch {
	case maxPerTier < 0 || maxPerTier > hardCap:
		return 0, false, fmt.Errorf("%w: max_per_tier must be in 0..%d, got %d", internalerr.ErrInvalidInput, hardCap, maxPerTier)
	case maxPerTier == 0:
		maxPerTier = e.tiers.MaxPerTier
		if maxPerTier <= 0 || maxPerTier > hardCap {
			maxPerTier = min(10, hardCap)
		}
	}

	include := true
	if req.IncludeTier5 != nil {
		include = *req.IncludeTier5
	}
	return maxPerTier, include, nil
}

// Assemble runs matching, scoring, grouping and the fallback decision over
// a loaded snapshot. Recipes that cannot be scored are skipped.
func (e *Engine) Assemble(ctx context.Context, snap *snapshot.Snapshot, maxPerTier int, includeTier5 bool) Response {
	log := zerolog.Ctx(ctx)
	if log.GetLevel() == zerolog.Disabled {
		log = &e.logger
	}

	profile := snap.Profile
	if !snap.HasProfile || len(profile) == 0 {
		profile = rank.NeutralProfile()
	}

	tiers := make(map[match.Tier][]ScoredRecipe, len(match.Tiers))
	for _, tier := range match.Tiers {
		tiers[tier] = []ScoredRecipe{}
	}

	available := match.InSet(snap.Inventory)
	for _, c := range snap.Candidates {
		_, comfort := snap.Cooked[c.Recipe.ID]

		res := match.Classify(c.Requirements, available, comfort)
		if res.Tier == match.Excluded {
			continue
		}

		scored, err := e.score(c, res, comfort, profile, snap)
		if err != nil {
			log.Warn().Err(err).Str("recipe_id", c.Recipe.ID).Msg("skipping recipe")
			e.metrics.RecipeSkipped(skipReason(err))
			continue
		}
		tiers[res.Tier] = append(tiers[res.Tier], scored)
	}

	count := 0
	for _, tier := range match.Tiers[:4] {
		tiers[tier] = rankTier(tiers[tier], maxPerTier)
		count += len(tiers[tier])
	}

	if includeTier5 && count < match.FallbackThreshold {
		tiers[match.GlobalSearch] = e.globalSearch(ctx, log, profile, maxPerTier)
	}

	urgent := snap.Urgent
	if urgent == nil {
		urgent = []store.UrgentItem{}
	}

	return Response{
		GeneratedAt:  snap.AsOf,
		Tiers:        tiers,
		UrgentItems:  urgent,
		TotalRecipes: count + len(tiers[match.GlobalSearch]),
	}
}

func (e *Engine) score(c store.Candidate, res match.Result, comfort bool, profile store.FlavorProfile, snap *snapshot.Snapshot) (ScoredRecipe, error) {
	required := match.Required(c.Requirements)
	ids := make([]string, len(required))
	for i, r := range required {
		ids[i] = r.IngredientID
	}

	b, err := e.scorer.Score(rank.Candidate{
		IngredientIDs: ids,
		Flavor:        c.Recipe.Flavor,
		Comfort:       comfort,
	}, profile, snap.Inventory, snap.AsOf)
	if err != nil {
		return ScoredRecipe{}, err
	}

	missing := make([]string, len(res.Missing))
	for i, r := range res.Missing {
		missing[i] = r.Name
	}

	return ScoredRecipe{
		RecipeID:           c.Recipe.ID,
		Title:              c.Recipe.Title,
		Tier:               res.Tier,
		RelevanceScore:     b.Relevance,
		MatchPercentage:    rank.Round2(rank.Clamp01(res.MatchPercentage)),
		MissingIngredients: missing,
		ExpiryUrgency:      rank.Round3(b.ExpiryUrgency),
		FlavorAffinity:     rank.Round3(b.FlavorAffinity),
		IsComfort:          comfort,
		Cuisine:            c.Recipe.Cuisine,
		PrepTimeMinutes:    c.Recipe.PrepTimeMinutes,
		ImageURL:           c.Recipe.ImageURL,
	}, nil
}

// rankTier orders by relevance descending, recipe id ascending, and keeps
// the first limit entries.
func rankTier(recipes []ScoredRecipe, limit int) []ScoredRecipe {
	sort.SliceStable(recipes, func(i, j int) bool {
		if recipes[i].RelevanceScore != recipes[j].RelevanceScore {
			return recipes[i].RelevanceScore > recipes[j].RelevanceScore
		}
		return recipes[i].RecipeID < recipes[j].RecipeID
	})
	if len(recipes) > limit {
		recipes = recipes[:limit]
	}
	return recipes
}

// globalSearch queries the fallback searcher once. Any failure leaves the
// tier empty.
func (e *Engine) globalSearch(ctx context.Context, log *zerolog.Logger, profile store.FlavorProfile, limit int) []ScoredRecipe {
	out := []ScoredRecipe{}
	if e.searcher == nil {
		e.metrics.FallbackOutcome("disabled")
		return out
	}

	hits, err := e.searcher.Search(ctx, fallback.Query{
		Vector:        rank.QueryVector(profile),
		Limit:         limit,
		DietaryFilter: []string{},
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, fallback.ErrUnavailable) {
			outcome = "unavailable"
		}
		log.Warn().Err(err).Str("outcome", outcome).Msg("global search failed, tier 5 left empty")
		e.metrics.FallbackOutcome(outcome)
		return out
	}
	e.metrics.FallbackOutcome("ok")

	if len(hits) > limit {
		hits = hits[:limit]
	}
	for _, h := range hits {
		sim := rank.Round3(rank.Clamp01(h.Similarity))
		out = append(out, ScoredRecipe{
			RecipeID:           h.RecipeID,
			Title:              h.Title,
			Tier:               match.GlobalSearch,
			RelevanceScore:     sim,
			MatchPercentage:    0,
			MissingIngredients: []string{},
			FlavorAffinity:     sim,
			IsComfort:          false,
		})
	}
	return out
}

func skipReason(err error) string {
	if errors.Is(err, rank.ErrMalformedFlavor) {
		return "malformed_flavor"
	}
	return "scoring_error"
}
