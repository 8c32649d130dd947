// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package algorithms

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/bookrec/internal/recommend"
)

// TrainingState is the ALS convergence state.
type TrainingState string

const (
	StateInit           TrainingState = "init"
	StateIterating      TrainingState = "iterating"
	StateConverged      TrainingState = "converged"
	StateMaxIterReached TrainingState = "max_iter_reached"
	StateStagnated      TrainingState = "stagnated"
	StateTimedOut       TrainingState = "timed_out"
)

// Terminal reports whether no further iterations will run.
func (s TrainingState) Terminal() bool {
	switch s {
	case StateConverged, StateMaxIterReached, StateStagnated, StateTimedOut:
		return true
	default:
		return false
	}
}

// ALSConfig contains configuration for the ALS trainer.
type ALSConfig struct {
	// Rank is the latent factor dimension k.
	Rank int `json:"rank" koanf:"rank" validate:"gte=1,lte=512"`

	// MaxIterations bounds the number of full user+item sweeps.
	MaxIterations int `json:"max_iterations" koanf:"max_iterations" validate:"gte=1"`

	// StagnationWindow is how many consecutive iterations must improve the
	// monitored objective by less than ImprovementThreshold before stopping.
	StagnationWindow int `json:"stagnation_window" koanf:"stagnation_window" validate:"gte=1"`

	// ImprovementThreshold is the minimum objective decrease that counts as
	// progress.
	ImprovementThreshold float64 `json:"improvement_threshold" koanf:"improvement_threshold" validate:"gte=0"`

	// Regularization is lambda; each row is penalised by lambda * n_ratings.
	Regularization float64 `json:"regularization" koanf:"regularization" validate:"gt=0"`

	// Seed drives factor initialisation.
	Seed int64 `json:"seed" koanf:"seed"`

	// NumWorkers for the per-entity solves. <= 0 uses GOMAXPROCS.
	NumWorkers int `json:"num_workers" koanf:"num_workers" validate:"gte=0"`

	// Timeout is a wall-clock budget checked between iterations. 0 disables it.
	Timeout time.Duration `json:"timeout" koanf:"timeout" validate:"gte=0"`
}

// DefaultALSConfig returns the defaults used by the pipeline.
func DefaultALSConfig() ALSConfig {
	return ALSConfig{
		Rank:                 10,
		MaxIterations:        20,
		StagnationWindow:     3,
		ImprovementThreshold: 1e-4,
		Regularization:       0.1,
		Seed:                 42,
	}
}

// IterationStat is emitted after every completed iteration.
type IterationStat struct {
	Iteration      int     `json:"iteration"`
	TrainObjective float64 `json:"train_objective"`
	TrainRMSE      float64 `json:"train_rmse"`
	// HoldoutObjective is the RMSE over holdout ratings whose user and item
	// both have factors. It is 0 when HoldoutCount is 0.
	HoldoutObjective float64       `json:"holdout_objective"`
	HoldoutCount     int           `json:"holdout_count"`
	State            TrainingState `json:"state"`
	Duration         time.Duration `json:"duration_ns"`
}

// FitResult is the outcome of ALSTrainer.Fit.
type FitResult struct {
	Model      *recommend.FactorModel
	State      TrainingState
	Iterations []IterationStat
	// Warning is set when the run stopped without meeting the improvement
	// criterion (max iterations or timeout).
	Warning  *recommend.ConvergenceWarning
	Duration time.Duration
}

// IterationObserver receives each IterationStat as soon as it is computed.
type IterationObserver func(IterationStat)

// ALSTrainer fits explicit-feedback matrix factorization with alternating
// least squares. Ratings are centred on the global mean and each factor
// row is regularised proportionally to its rating count (ALS-WR):
//
//	min sum (r_ui - mu - x_u'y_i)^2 + lambda (sum n_u |x_u|^2 + sum n_i |y_i|^2)
//
// One iteration solves every user row with item factors fixed, waits for all
// of them, then solves every item row with user factors fixed.
type ALSTrainer struct {
	BaseAlgorithm
	config   ALSConfig
	logger   zerolog.Logger
	observer IterationObserver
}

// NewALSTrainer creates a trainer. Zero config fields fall back to
// DefaultALSConfig values.
//
//nolint:gocritic // zerolog.Logger is passed by value
func NewALSTrainer(cfg ALSConfig, logger zerolog.Logger) *ALSTrainer {
	def := DefaultALSConfig()
	if cfg.Rank <= 0 {
		cfg.Rank = def.Rank
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.StagnationWindow <= 0 {
		cfg.StagnationWindow = def.StagnationWindow
	}
	if cfg.Regularization <= 0 {
		cfg.Regularization = def.Regularization
	}
	cfg.NumWorkers = defaultWorkers(cfg.NumWorkers)

	return &ALSTrainer{
		BaseAlgorithm: NewBaseAlgorithm("als"),
		config:        cfg,
		logger:        logger.With().Str("component", "als").Logger(),
	}
}

// Config returns the effective configuration.
func (a *ALSTrainer) Config() ALSConfig {
	return a.config
}

// OnIteration registers an observer called after every iteration.
func (a *ALSTrainer) OnIteration(fn IterationObserver) {
	a.acquireTrainLock()
	defer a.releaseTrainLock()
	a.observer = fn
}

type entry struct {
	idx   int
	value float64
}

// alsState holds the dense indexed form of one training partition.
type alsState struct {
	userIDs  []string
	itemIDs  []string
	userIdx  map[string]int
	itemIdx  map[string]int
	userRows [][]entry
	itemRows [][]entry
	X, Y     [][]float64
	mean     float64
	count    int
}

// Fit trains on train and monitors holdout after each iteration. holdout may
// be nil or empty, in which case the training objective is monitored.
//
// It fails with *recommend.DataInsufficientError when train is empty or any
// user or item of its universe has no ratings.
func (a *ALSTrainer) Fit(ctx context.Context, train *recommend.RatingStore, holdout *recommend.HoldoutSet) (*FitResult, error) {
	a.acquireTrainLock()
	defer a.releaseTrainLock()

	if train.Count() == 0 {
		return nil, &recommend.DataInsufficientError{Reason: "training partition is empty"}
	}
	if eu, ei := train.EmptyUsers(), train.EmptyItems(); len(eu) > 0 || len(ei) > 0 {
		return nil, &recommend.DataInsufficientError{
			Reason:     "degenerate least-squares system",
			EmptyUsers: eu,
			EmptyItems: ei,
		}
	}

	start := time.Now()
	st := a.index(train)
	a.initFactors(st)

	cfg := a.config
	state := StateInit
	a.logger.Debug().
		Int("users", len(st.userIDs)).
		Int("items", len(st.itemIDs)).
		Int("ratings", st.count).
		Int("rank", cfg.Rank).
		Msg("ALS fit starting")

	var history []IterationStat
	mon := newConvergenceMonitor(cfg)

	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		if ContextCancelled(ctx) {
			return nil, ctx.Err()
		}
		if iter > 1 && cfg.Timeout > 0 && time.Since(start) > cfg.Timeout {
			state = StateTimedOut
			break
		}
		state = StateIterating
		iterStart := time.Now()

		a.sweep(st.userRows, st.X, st.Y)
		a.sweep(st.itemRows, st.Y, st.X)

		stat := a.evaluate(st, holdout)
		stat.Iteration = iter
		stat.Duration = time.Since(iterStart)

		monitored := stat.TrainObjective
		if stat.HoldoutCount > 0 {
			monitored = stat.HoldoutObjective
		}
		state = mon.observe(iter, monitored)
		stat.State = state
		history = append(history, stat)

		a.logger.Debug().
			Int("iteration", iter).
			Float64("train_objective", stat.TrainObjective).
			Float64("holdout_rmse", stat.HoldoutObjective).
			Str("state", string(state)).
			Msg("ALS iteration complete")

		if a.observer != nil {
			a.observer(stat)
		}
		if state.Terminal() {
			break
		}
	}

	model := recommend.NewFactorModel(toMap(st.userIDs, st.X), toMap(st.itemIDs, st.Y), st.mean, cfg.Rank)
	model.Version = a.markTrained()

	res := &FitResult{
		Model:      model,
		State:      state,
		Iterations: history,
		Duration:   time.Since(start),
	}
	if state == StateMaxIterReached || state == StateTimedOut {
		res.Warning = &recommend.ConvergenceWarning{
			State:      string(state),
			Iterations: len(history),
			LastDelta:  mon.lastDelta,
		}
	}

	a.logger.Info().
		Str("state", string(state)).
		Int("iterations", len(history)).
		Dur("duration", res.Duration).
		Msg("ALS fit finished")
	return res, nil
}

// convergenceMonitor applies the stopping rule to the monitored objective:
// once StagnationWindow consecutive iterations improve it by less than
// ImprovementThreshold the run stops, as Stagnated when every one of those
// iterations made it worse and as Converged otherwise.
type convergenceMonitor struct {
	window    int
	threshold float64
	maxIter   int
	prev      float64
	lastDelta float64
	small     int
	worsening int
}

func newConvergenceMonitor(cfg ALSConfig) *convergenceMonitor {
	return &convergenceMonitor{
		window:    cfg.StagnationWindow,
		threshold: cfg.ImprovementThreshold,
		maxIter:   cfg.MaxIterations,
		prev:      math.Inf(1),
		lastDelta: math.Inf(1),
	}
}

func (m *convergenceMonitor) observe(iter int, value float64) TrainingState {
	m.lastDelta = m.prev - value
	m.prev = value

	if m.lastDelta < m.threshold {
		m.small++
	} else {
		m.small = 0
	}
	if m.lastDelta < 0 {
		m.worsening++
	} else {
		m.worsening = 0
	}

	switch {
	case m.small >= m.window && m.worsening >= m.window:
		return StateStagnated
	case m.small >= m.window:
		return StateConverged
	case iter >= m.maxIter:
		return StateMaxIterReached
	default:
		return StateIterating
	}
}

func (a *ALSTrainer) index(train *recommend.RatingStore) *alsState {
	st := &alsState{
		userIDs: train.Users(),
		itemIDs: train.Items(),
		mean:    train.MeanRating(),
		count:   train.Count(),
	}
	st.userIdx = make(map[string]int, len(st.userIDs))
	for i, id := range st.userIDs {
		st.userIdx[id] = i
	}
	st.itemIdx = make(map[string]int, len(st.itemIDs))
	for i, id := range st.itemIDs {
		st.itemIdx[id] = i
	}

	st.userRows = make([][]entry, len(st.userIDs))
	st.itemRows = make([][]entry, len(st.itemIDs))
	for _, r := range train.All() {
		u, i := st.userIdx[r.UserID], st.itemIdx[r.ItemID]
		v := float64(r.Value) - st.mean
		st.userRows[u] = append(st.userRows[u], entry{idx: i, value: v})
		st.itemRows[i] = append(st.itemRows[i], entry{idx: u, value: v})
	}
	return st
}

// initFactors fills X then Y from a single seeded source, so the draw order
// is fixed by the sorted id lists.
func (a *ALSTrainer) initFactors(st *alsState) {
	rng := rand.New(rand.NewSource(a.config.Seed)) //nolint:gosec // reproducible initialisation
	scale := 0.1 / math.Sqrt(float64(a.config.Rank))
	fill := func(n int) [][]float64 {
		m := make([][]float64, n)
		for i := range m {
			m[i] = make([]float64, a.config.Rank)
			for f := range m[i] {
				m[i][f] = scale * rng.NormFloat64()
			}
		}
		return m
	}
	st.X = fill(len(st.userIDs))
	st.Y = fill(len(st.itemIDs))
}

// sweep re-solves every row of target against the fixed matrix. Each worker
// writes only the rows of its own chunk.
func (a *ALSTrainer) sweep(rows [][]entry, target, fixed [][]float64) {
	k := a.config.Rank
	lambda := a.config.Regularization

	parallelChunks(len(rows), a.config.NumWorkers, func(_, start, end int) {
		A := make([][]float64, k)
		for f := range A {
			A[f] = make([]float64, k)
		}
		b := make([]float64, k)

		for r := start; r < end; r++ {
			for f1 := 0; f1 < k; f1++ {
				for f2 := 0; f2 < k; f2++ {
					A[f1][f2] = 0
				}
				A[f1][f1] = lambda * float64(len(rows[r]))
				b[f1] = 0
			}
			for _, e := range rows[r] {
				y := fixed[e.idx]
				for f1 := 0; f1 < k; f1++ {
					for f2 := f1; f2 < k; f2++ {
						A[f1][f2] += y[f1] * y[f2]
					}
					b[f1] += e.value * y[f1]
				}
			}
			for f1 := 0; f1 < k; f1++ {
				for f2 := 0; f2 < f1; f2++ {
					A[f1][f2] = A[f2][f1]
				}
			}
			target[r] = solveCholesky(A, b)
		}
	})
}

func (a *ALSTrainer) evaluate(st *alsState, holdout *recommend.HoldoutSet) IterationStat {
	lambda := a.config.Regularization
	var sse, reg float64
	for u, row := range st.userRows {
		x := st.X[u]
		for _, e := range row {
			d := e.value - recommend.Dot(x, st.Y[e.idx])
			sse += d * d
		}
		reg += float64(len(row)) * recommend.Dot(x, x)
	}
	for i, row := range st.itemRows {
		reg += float64(len(row)) * recommend.Dot(st.Y[i], st.Y[i])
	}

	stat := IterationStat{
		TrainObjective: sse + lambda*reg,
		TrainRMSE:      math.Sqrt(sse / float64(st.count)),
	}

	if holdout.Len() == 0 {
		return stat
	}

	var hse float64
	for _, r := range holdout.Ratings() {
		u, okU := st.userIdx[r.UserID]
		i, okI := st.itemIdx[r.ItemID]
		if !okU || !okI {
			continue
		}
		d := float64(r.Value) - st.mean - recommend.Dot(st.X[u], st.Y[i])
		hse += d * d
		stat.HoldoutCount++
	}
	if stat.HoldoutCount > 0 {
		stat.HoldoutObjective = math.Sqrt(hse / float64(stat.HoldoutCount))
	}
	return stat
}

func toMap(ids []string, rows [][]float64) map[string][]float64 {
	m := make(map[string][]float64, len(ids))
	for i, id := range ids {
		m[id] = rows[i]
	}
	return m
}

// String summarises a result for logs and reports.
func (r *FitResult) String() string {
	if len(r.Iterations) == 0 {
		return fmt.Sprintf("state=%s iterations=0", r.State)
	}
	last := r.Iterations[len(r.Iterations)-1]
	return fmt.Sprintf("state=%s iterations=%d train_rmse=%.4f holdout_rmse=%.4f",
		r.State, len(r.Iterations), last.TrainRMSE, last.HoldoutObjective)
}
