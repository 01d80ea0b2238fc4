package sketchsearch

import (
	"context"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSearchRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sketchsearch_search_running",
		Help: "The number of concurrent SearchDatabases calls running.",
	})
	metricSearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sketchsearch_search_duration_seconds",
		Help:    "The duration a SearchDatabases call took in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	metricSearchResultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sketchsearch_search_results_total",
		Help: "The total number of SearchResult records returned across all SearchDatabases calls.",
	})
)

// SearchDatabases answers "which references exceed threshold against
// query?" (spec §4.D). It selects similarity or containment scoring per
// doContainment, visits every database, de-duplicates matches by md5sum,
// and returns them ordered by descending similarity.
//
// When bestOnly is true, each indexed database gets a fresh FindBest
// strategy for the duration of its own traversal (never reused across
// databases, per spec §4.B).
func SearchDatabases(ctx context.Context, query Sketch, databases []Database, threshold float64, doContainment, bestOnly bool) ([]SearchResult, error) {
	metricSearchRunning.Inc()
	start := time.Now()
	defer func() {
		metricSearchRunning.Dec()
		metricSearchDuration.Observe(time.Since(start).Seconds())
	}()

	var reportable Strategy = similarityStrategy{}
	if doContainment {
		reportable = containmentStrategy{}
	}

	seen := make(map[string]bool)
	var results []SearchResult

	for _, db := range databases {
		pruning := reportable
		if bestOnly && db.Source.IsIndexed() {
			pruning = newFindBestStrategy()
		}

		cands, err := visit(ctx, db, pruning, query, threshold)
		if err != nil {
			return nil, err
		}

		for _, c := range cands {
			score, ok := reportable.Score(query, c.sketch)
			if !ok {
				return nil, ErrMoltypeMismatch
			}
			if score < threshold {
				continue
			}
			md5 := c.sketch.MD5Sum()
			if seen[md5] {
				continue
			}
			seen[md5] = true
			results = append(results, SearchResult{
				Similarity: score,
				Match:      c.sketch,
				MD5:        md5,
				Filename:   c.filename,
				Name:       c.sketch.Name(),
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	metricSearchResultsTotal.Add(float64(len(results)))
	return results, nil
}
