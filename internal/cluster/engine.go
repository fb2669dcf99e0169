package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Defaults for Options fields left zero.
const (
	DefaultGroupingThreshold   = 2
	DefaultMaxCategoryChannels = 50
	DefaultCategoryPrefix      = "COURSES"
	DefaultThresholdFactor     = 1.0
	DefaultSparseOverlap       = 1
)

// Options configures the clustering engine.
type Options struct {
	// GroupingThreshold is the fixed minimum overlap for an edge. Must be >= 1.
	GroupingThreshold int
	// MaxCategoryChannels is the capacity C of one category label. Must be >= 1.
	MaxCategoryChannels int
	// CategoryPrefix is the base token for generated labels.
	CategoryPrefix string
	// Detector overrides the default Louvain strategy when non-nil.
	Detector Detector
	// OptimizeOverlap selects the inverted-index overlap method (default)
	// over the pairwise-intersection reference method.
	OptimizeOverlap bool
	// AdaptiveThreshold derives the edge threshold from the overlap weight
	// distribution instead of GroupingThreshold, when overlaps exist.
	AdaptiveThreshold bool
	// ThresholdFactor scales the adaptive median. Must be > 0.
	ThresholdFactor float64
	// SparseOverlap is the synthetic weight for metadata-rescued pairs. Must be >= 1.
	SparseOverlap int
	// Logger receives structured pipeline events. Defaults to a no-op logger.
	Logger zerolog.Logger
}

// MembershipSource supplies a fresh membership snapshot for one cycle.
// Fetching may be I/O-bound; it is awaited inside the scheduler loop.
type MembershipSource interface {
	FetchMembership(ctx context.Context) (map[string][]string, error)
}

// MetadataSource supplies optional static course attributes.
type MetadataSource interface {
	FetchMetadata(ctx context.Context) (map[string]CourseMeta, error)
}

// PersistFunc receives the completed mapping at the end of a cycle. The
// callback owns reconciliation with the outside world; its failures are
// logged by the scheduler but do not stop the loop.
type PersistFunc func(ctx context.Context, mapping map[CourseID]string) error

// Engine composes the clustering pipeline and drives its periodic execution.
type Engine struct {
	opts     Options
	detector Detector
	log      zerolog.Logger
}

// NewEngine validates opts, fills defaults, and returns a ready engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.GroupingThreshold == 0 {
		opts.GroupingThreshold = DefaultGroupingThreshold
	}
	if opts.MaxCategoryChannels == 0 {
		opts.MaxCategoryChannels = DefaultMaxCategoryChannels
	}
	if opts.CategoryPrefix == "" {
		opts.CategoryPrefix = DefaultCategoryPrefix
	}
	if opts.ThresholdFactor == 0 {
		opts.ThresholdFactor = DefaultThresholdFactor
	}
	if opts.SparseOverlap == 0 {
		opts.SparseOverlap = DefaultSparseOverlap
	}

	if opts.GroupingThreshold < 1 {
		return nil, fmt.Errorf("grouping threshold must be at least 1, got %d", opts.GroupingThreshold)
	}
	if opts.MaxCategoryChannels < 1 {
		return nil, fmt.Errorf("max category channels must be at least 1, got %d", opts.MaxCategoryChannels)
	}
	if opts.ThresholdFactor <= 0 {
		return nil, fmt.Errorf("threshold factor must be positive, got %g", opts.ThresholdFactor)
	}
	if opts.SparseOverlap < 1 {
		return nil, fmt.Errorf("sparse overlap must be at least 1, got %d", opts.SparseOverlap)
	}

	detector := opts.Detector
	if detector == nil {
		detector = NewLouvainDetector()
	}
	return &Engine{opts: opts, detector: detector, log: opts.Logger}, nil
}

// Cluster runs the full pipeline over one raw membership snapshot and returns
// the course→category mapping. It either returns a total mapping covering
// every input course exactly once, or a NormalizationError; it never returns
// a partial mapping. Identical input yields an identical mapping.
func (e *Engine) Cluster(raw map[string][]string, rawMeta map[string]CourseMeta) (map[CourseID]string, error) {
	membership, err := NormalizeMembership(raw)
	if err != nil {
		return nil, err
	}
	metadata, err := NormalizeMetadata(rawMeta)
	if err != nil {
		return nil, err
	}

	overlaps := e.computeOverlaps(membership, metadata)
	threshold := e.opts.GroupingThreshold
	if e.opts.AdaptiveThreshold && len(overlaps.Real) > 0 {
		threshold = adaptiveThreshold(overlaps.Real, e.opts.ThresholdFactor, e.opts.GroupingThreshold)
		e.log.Debug().Int("threshold", threshold).Msg("adaptive threshold selected")
	}

	g := buildGraph(membership, overlaps, threshold, e.log)

	clusters, err := e.detector.Detect(g)
	if err != nil {
		// Recoverable degradation: fall back to one community holding every
		// course so the cycle still produces a total mapping.
		e.log.Error().Err(err).Msg("community detection failed; falling back to a single community")
		clusters = []Community{allNodesCommunity(g)}
	}

	quality := Evaluate(g, clusters)
	e.log.Info().
		Int("communities", len(clusters)).
		Float64("modularity", quality.Modularity).
		Msg("clustering cycle scored")

	return MapToLabels(clusters, e.opts.MaxCategoryChannels, e.opts.CategoryPrefix), nil
}

func (e *Engine) computeOverlaps(membership Membership, metadata Metadata) Overlaps {
	var real map[Pair]int
	if e.opts.OptimizeOverlap {
		real = computeOverlapsInverted(membership)
	} else {
		real = computeOverlapsPairwise(membership)
	}
	return Overlaps{
		Real:    real,
		Rescued: rescueSparsePairs(membership, real, metadata, e.opts.SparseOverlap),
	}
}

// RunPeriodic re-runs the pipeline on a fixed interval until ctx is
// cancelled. Each cycle fetches a fresh snapshot, clusters it, and hands the
// mapping to persist. A failed cycle is logged and swallowed; the loop
// proceeds on schedule. The inter-cycle sleep is raced against ctx so
// shutdown is prompt. An in-flight cycle always finishes: no torn mapping is
// ever handed to persist.
//
// The caller is responsible for any host-readiness gating before the first
// call. RunPeriodic returns nil on cancellation.
func (e *Engine) RunPeriodic(ctx context.Context, interval time.Duration, source MembershipSource, persist PersistFunc, metaSource MetadataSource) error {
	if interval <= 0 {
		return errors.New("interval must be positive")
	}
	e.log.Info().Dur("interval", interval).Msg("starting periodic clustering")

	for iteration := 1; ; iteration++ {
		if ctx.Err() != nil {
			break
		}

		if err := e.runCycle(ctx, source, persist, metaSource); err != nil {
			if ctx.Err() != nil {
				break
			}
			e.log.Error().Err(err).Int("iteration", iteration).Msg("clustering cycle failed")
		} else {
			e.log.Info().Int("iteration", iteration).Msg("clustering cycle complete; mapping persisted")
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			e.log.Info().Msg("periodic clustering received shutdown signal; terminating")
			return nil
		case <-timer.C:
		}
	}

	e.log.Info().Msg("periodic clustering received shutdown signal; terminating")
	return nil
}

func (e *Engine) runCycle(ctx context.Context, source MembershipSource, persist PersistFunc, metaSource MetadataSource) error {
	raw, err := source.FetchMembership(ctx)
	if err != nil {
		return fmt.Errorf("fetching membership snapshot: %w", err)
	}

	var rawMeta map[string]CourseMeta
	if metaSource != nil {
		rawMeta, err = metaSource.FetchMetadata(ctx)
		if err != nil {
			// Metadata only rescues sparse pairs; proceed without it.
			e.log.Warn().Err(err).Msg("fetching course metadata failed; clustering without sparse rescue")
			rawMeta = nil
		}
	}

	var mapping map[CourseID]string
	if len(raw) > 0 {
		mapping, err = e.Cluster(raw, rawMeta)
		if err != nil {
			return fmt.Errorf("clustering: %w", err)
		}
	} else {
		e.log.Warn().Msg("no membership data available; persisting empty mapping")
		mapping = map[CourseID]string{}
	}

	if err := persist(ctx, mapping); err != nil {
		return fmt.Errorf("persisting mapping: %w", err)
	}
	return nil
}
