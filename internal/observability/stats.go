package observability

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

type StatsSnapshot struct {
	PagesFetched      uint64            `json:"pages_fetched"`
	RecipesExtracted  uint64            `json:"recipes_extracted"`
	ErrorPagesSkipped uint64            `json:"error_pages_skipped"`
	KnownIDsSkipped   uint64            `json:"known_ids_skipped"`
	BlocksDropped     uint64            `json:"blocks_dropped"`
	ErrorsTotal       uint64            `json:"errors_total"`
	FetchSecondsAvg   float64           `json:"fetch_seconds_avg"`
	RecipesPersisted  uint64            `json:"recipes_persisted"`
	ErrorsByType      map[string]uint64 `json:"errors_by_type,omitempty"`
	ErrorsByComponent map[string]uint64 `json:"errors_by_component,omitempty"`
	RunsByResult      map[string]uint64 `json:"runs_by_result,omitempty"`
}

var (
	pagesFetched      uint64
	recipesExtracted  uint64
	errorPagesSkipped uint64
	knownIDsSkipped   uint64
	blocksDropped     uint64
	errorsTotal       uint64
	recipesPersisted  uint64

	fetchCount uint64
	fetchNanos uint64

	statsMu           sync.Mutex
	errorsByType      = map[string]uint64{}
	errorsByComponent = map[string]uint64{}
	runsByResult      = map[string]uint64{}
)

var (
	registerOnce sync.Once

	pagesFetchedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_hunter_pages_fetched_total",
		Help: "Pages loaded by the fetcher.",
	}, []string{"kind"})
	recipesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipe_hunter_recipes_extracted_total",
		Help: "Recipe records produced by the normalizer.",
	})
	skippedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_hunter_pages_skipped_total",
		Help: "Pages skipped without producing a record.",
	}, []string{"reason"})
	errorsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_hunter_errors_total",
		Help: "Errors by type and component.",
	}, []string{"type", "component"})
	fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recipe_hunter_fetch_duration_seconds",
		Help:    "Time spent loading a page.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
	})
	persistedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "recipe_hunter_recipes_persisted",
		Help: "Size of the collection written by the last successful run.",
	})
	runsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_hunter_runs_total",
		Help: "Scrape runs by result.",
	}, []string{"result"})
)

// RegisterMetrics adds the collectors to reg. Safe to call more than once.
func RegisterMetrics(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			pagesFetchedCounter,
			recipesCounter,
			skippedCounter,
			errorsCounter,
			fetchDuration,
			persistedGauge,
			runsCounter,
		)
	})
}

func IncPagesFetched(kind string) {
	atomic.AddUint64(&pagesFetched, 1)
	pagesFetchedCounter.WithLabelValues(kind).Inc()
}

func IncRecipesExtracted() {
	atomic.AddUint64(&recipesExtracted, 1)
	recipesCounter.Inc()
}

func IncErrorPageSkipped() {
	atomic.AddUint64(&errorPagesSkipped, 1)
	skippedCounter.WithLabelValues("error_page").Inc()
}

func IncKnownIDSkipped() {
	atomic.AddUint64(&knownIDsSkipped, 1)
	skippedCounter.WithLabelValues("known_id").Inc()
}

func AddBlocksDropped(n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(&blocksDropped, uint64(n))
}

func SetRecipesPersisted(n int) {
	atomic.StoreUint64(&recipesPersisted, uint64(n))
	persistedGauge.Set(float64(n))
}

func IncRun(result string) {
	if result == "" {
		result = "unknown"
	}
	statsMu.Lock()
	runsByResult[result]++
	statsMu.Unlock()
	runsCounter.WithLabelValues(result).Inc()
}

func ObserveFetchDuration(seconds float64) {
	if seconds <= 0 {
		return
	}
	atomic.AddUint64(&fetchCount, 1)
	atomic.AddUint64(&fetchNanos, uint64(seconds*1e9))
	fetchDuration.Observe(seconds)
}

func IncError(errType, component string) {
	if errType == "" {
		errType = "unknown"
	}
	if component == "" {
		component = "unknown"
	}
	atomic.AddUint64(&errorsTotal, 1)
	statsMu.Lock()
	errorsByType[errType]++
	errorsByComponent[component]++
	statsMu.Unlock()
	errorsCounter.WithLabelValues(errType, component).Inc()
}

func Snapshot() StatsSnapshot {
	statsMu.Lock()
	errorsTypeCopy := copyMap(errorsByType)
	errorsComponentCopy := copyMap(errorsByComponent)
	runsCopy := copyMap(runsByResult)
	statsMu.Unlock()

	count := atomic.LoadUint64(&fetchCount)
	avg := 0.0
	if count > 0 {
		avg = float64(atomic.LoadUint64(&fetchNanos)) / float64(count) / 1e9
	}

	return StatsSnapshot{
		PagesFetched:      atomic.LoadUint64(&pagesFetched),
		RecipesExtracted:  atomic.LoadUint64(&recipesExtracted),
		ErrorPagesSkipped: atomic.LoadUint64(&errorPagesSkipped),
		KnownIDsSkipped:   atomic.LoadUint64(&knownIDsSkipped),
		BlocksDropped:     atomic.LoadUint64(&blocksDropped),
		ErrorsTotal:       atomic.LoadUint64(&errorsTotal),
		FetchSecondsAvg:   avg,
		RecipesPersisted:  atomic.LoadUint64(&recipesPersisted),
		ErrorsByType:      errorsTypeCopy,
		ErrorsByComponent: errorsComponentCopy,
		RunsByResult:      runsCopy,
	}
}

func copyMap(src map[string]uint64) map[string]uint64 {
	if len(src) == 0 {
		return map[string]uint64{}
	}
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
