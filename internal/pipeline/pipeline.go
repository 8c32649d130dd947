// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

// Package pipeline runs the evaluation pipeline end to end:
//
//	ingest -> catalog join -> rating store -> statistics -> holdout split
//	       -> ALS fit | similarity graph | search index   (concurrently)
//	       -> top-N lists -> ALS and KNN holdout evaluation
//	       -> DuckDB / model store persistence
//
// A run returns a Result for reporting and a Snapshot for serving.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/bookrec/internal/config"
	"github.com/tomtom215/bookrec/internal/database"
	"github.com/tomtom215/bookrec/internal/ingest"
	"github.com/tomtom215/bookrec/internal/logging"
	"github.com/tomtom215/bookrec/internal/metrics"
	"github.com/tomtom215/bookrec/internal/recommend"
	"github.com/tomtom215/bookrec/internal/recommend/algorithms"
	"github.com/tomtom215/bookrec/internal/recommend/storage"
	"github.com/tomtom215/bookrec/internal/search"
)

// ModelName is the model store key of the ALS factors.
const ModelName = "als"

// Evaluation names in Result.Evaluations.
const (
	EvalALS = "als"
	EvalKNN = "knn"
)

// Pipeline runs configured evaluation passes. The optional database and
// model store receive each run's output.
type Pipeline struct {
	cfg    *config.Config
	db     *database.DB
	models *storage.Store
	logger zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDatabase persists inputs and results to DuckDB.
func WithDatabase(db *database.DB) Option {
	return func(p *Pipeline) { p.db = db }
}

// WithModelStore saves each fitted model as a new version.
func WithModelStore(s *storage.Store) Option {
	return func(p *Pipeline) { p.models = s }
}

// WithLogger overrides the component logger.
//
//nolint:gocritic // zerolog.Logger is passed by value
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, logger: logging.Component("pipeline")}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run reads the configured files and runs every stage.
func (p *Pipeline) Run(ctx context.Context) (*Result, *Snapshot, error) {
	ds, err := ingest.LoadFiles(ctx, p.cfg.Data.Files(), p.cfg.Data.Options())
	if err != nil {
		return nil, nil, fmt.Errorf("ingest: %w", err)
	}
	return p.RunDataset(ctx, ds)
}

// RunDataset runs every stage after ingestion on an already parsed dataset.
func (p *Pipeline) RunDataset(ctx context.Context, ds *ingest.Dataset) (*Result, *Snapshot, error) {
	start := time.Now()
	runID := logging.RunIDFromContext(ctx)
	if runID == "" {
		runID = logging.NewRunID()
		ctx = logging.ContextWithRunID(ctx, runID)
	}
	log := p.logger.With().Str("run_id", runID).Logger()
	cfg := p.cfg

	res := &Result{
		RunID:       runID,
		StartedAt:   start.UTC(),
		RatingsFile: ds.RatingsReport,
		BooksFile:   ds.BooksReport,
		Query:       cfg.Recommend.Query,
	}
	snap := &Snapshot{RunID: runID}

	// Catalog and store.
	if ds.HasCatalog() {
		catalog, cstats := recommend.NewCatalog(ds.Items)
		snap.Catalog = catalog
		res.CatalogLoad = &cstats
		metrics.RecordIngest("books", "kept", cstats.Kept)
		metrics.RecordIngest("books", "invalid", cstats.Invalid)
		metrics.RecordIngest("books", "duplicate", cstats.Duplicates)
	}
	store, rstats := recommend.Load(ds.Ratings, snap.Catalog)
	res.RatingLoad = rstats
	metrics.RecordIngest("ratings", "kept", rstats.Kept)
	metrics.RecordIngest("ratings", "invalid", rstats.Invalid)
	metrics.RecordIngest("ratings", "unmatched", rstats.Unmatched)
	metrics.RecordIngest("ratings", "duplicate", rstats.Duplicates)
	log.Info().
		Int("kept", rstats.Kept).
		Int("invalid", rstats.Invalid).
		Int("unmatched", rstats.Unmatched).
		Int("duplicates", rstats.Duplicates).
		Msg("Ratings loaded")
	if store.Count() == 0 {
		return nil, nil, recommend.ErrEmptyStore
	}
	snap.Store = store

	// Statistics.
	summary, err := recommend.Summarize(store)
	if err != nil {
		return nil, nil, fmt.Errorf("statistics: %w", err)
	}
	res.Summary = summary
	snap.Summary = summary
	res.MostRated = recommend.MostRated(store, cfg.Report.MostRated)
	metrics.SetStoreSize(summary.Ratings, summary.Users, summary.Items, summary.Sparsity)

	// Holdout.
	split, holdout, err := recommend.SampleHoldout(store, cfg.Holdout)
	if err != nil {
		return nil, nil, fmt.Errorf("holdout: %w", err)
	}
	train := split.Compact()
	snap.Train, snap.Holdout = train, holdout
	res.Holdout = HoldoutReport{
		Withheld:     holdout.Len(),
		TrainRatings: train.Count(),
		TrainUsers:   train.DistinctUsers(),
		TrainItems:   train.DistinctItems(),
		DroppedUsers: split.DistinctUsers() - train.DistinctUsers(),
		DroppedItems: split.DistinctItems() - train.DistinctItems(),
	}
	for _, r := range holdout.Ratings() {
		if train.HasUser(r.UserID) && train.HasItem(r.ItemID) {
			res.Holdout.HoldoutUsable++
		}
	}
	log.Info().
		Int("withheld", res.Holdout.Withheld).
		Int("usable", res.Holdout.HoldoutUsable).
		Int("dropped_items", res.Holdout.DroppedItems).
		Msg("Holdout sampled")

	// ALS, similarity and the search index are independent of each other.
	var (
		fit   *algorithms.FitResult
		graph *algorithms.SimilarityGraph
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		trainer := algorithms.NewALSTrainer(cfg.ALS, log.With().Str("component", "als").Logger())
		trainer.OnIteration(func(st algorithms.IterationStat) {
			metrics.RecordALSIteration(st.TrainObjective, st.HoldoutObjective, st.HoldoutCount)
		})
		var err error
		fit, err = trainer.Fit(gctx, train, holdout)
		if err != nil {
			return fmt.Errorf("als: %w", err)
		}
		metrics.RecordALSFit(string(fit.State), fit.Duration)
		return nil
	})
	g.Go(func() error {
		var err error
		graph, err = algorithms.BuildSimilarity(gctx, train, cfg.Similarity)
		if err != nil {
			return fmt.Errorf("similarity: %w", err)
		}
		metrics.SimilarityPairs.WithLabelValues(string(cfg.Similarity.Axis), string(cfg.Similarity.Measure)).
			Set(float64(graph.Pairs()))
		return nil
	})
	if snap.Catalog != nil {
		g.Go(func() error {
			fields, err := search.ParseFields(cfg.Search.Fields)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			snap.Search = search.BuildIndex(snap.Catalog.Items(), fields)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	snap.Model = fit.Model
	snap.Iterations = fit.Iterations
	snap.State = fit.State
	snap.KNN = algorithms.NewKNN(graph, train, cfg.KNN)
	res.Fit = FitReport{State: fit.State, Iterations: fit.Iterations, Duration: fit.Duration}
	if fit.Warning != nil {
		res.Fit.Warning = fit.Warning.Error()
		log.Warn().Str("state", string(fit.State)).Msg("ALS stopped without converging")
	}
	res.Similarity = SimilarityReport{
		Axis:      cfg.Similarity.Axis,
		Measure:   cfg.Similarity.Measure,
		Threshold: cfg.Similarity.Threshold,
		Entities:  len(graph.IDs()),
		Pairs:     graph.Pairs(),
	}

	// Top-N.
	if err := p.recommendAll(snap, res); err != nil {
		return nil, nil, err
	}

	// Holdout evaluation.
	res.Evaluations = []algorithms.Evaluation{
		algorithms.EvaluateHoldout(EvalALS, holdout, algorithms.FactorPredictor(snap.Model)),
		algorithms.EvaluateHoldout(EvalKNN, holdout, algorithms.KNNPredictor(snap.KNN)),
	}
	for _, ev := range res.Evaluations {
		log.Info().
			Str("model", ev.Name).
			Int("evaluated", ev.Evaluated).
			Int("skipped", ev.Skipped).
			Float64("rmse", ev.RMSE).
			Float64("mae", ev.MAE).
			Msg("Holdout evaluation")
	}

	// Persistence.
	if p.models != nil {
		meta, err := p.saveModel(ctx, res, snap)
		if err != nil {
			return nil, nil, err
		}
		res.ModelVersion = meta.Version
		snap.ModelVersion = meta.Version
	}
	res.Duration = time.Since(start)
	if p.db != nil {
		if err := p.persist(ctx, res, snap); err != nil {
			return nil, nil, err
		}
	}
	snap.CreatedAt = time.Now().UTC()

	log.Info().
		Str("state", string(res.Fit.State)).
		Int("recommendations", len(res.Recommendations)).
		Dur("duration", res.Duration).
		Msg("Pipeline run complete")
	return res, snap, nil
}

// targetUsers picks the users that get a list in a run.
func (p *Pipeline) targetUsers(train *recommend.RatingStore) []string {
	rc := p.cfg.Recommend
	if len(rc.Users) > 0 {
		return rc.Users
	}
	users := train.Users()
	if rc.SampleUsers > 0 && rc.SampleUsers < len(users) {
		users = users[:rc.SampleUsers]
	}
	return users
}

func (p *Pipeline) recommendAll(snap *Snapshot, res *Result) error {
	rc := p.cfg.Recommend
	opts := RecommendOptions{
		N:            rc.N,
		Query:        rc.Query,
		QueryLimit:   rc.QueryCandidates,
		ExcludeRated: rc.ExcludeRated,
	}
	if rc.Query != "" {
		if snap.Search == nil {
			p.logger.Warn().Str("query", rc.Query).Msg("No catalog loaded, ignoring recommendation query")
			opts.Query = ""
		} else {
			res.QueryHits = len(snap.Search.Candidates(rc.Query, rc.QueryCandidates))
		}
	}

	for _, u := range p.targetUsers(snap.Train) {
		start := time.Now()
		recs, err := snap.Recommend(u, opts)
		var unknown *recommend.UnknownUserError
		switch {
		case errors.As(err, &unknown):
			metrics.RecordRecommend("topn", "unknown_user", time.Since(start))
			res.ColdUsers = append(res.ColdUsers, u)
			continue
		case err != nil:
			metrics.RecordRecommend("topn", "error", time.Since(start))
			return fmt.Errorf("recommend %s: %w", u, err)
		}
		metrics.RecordRecommend("topn", "ok", time.Since(start))
		res.Recommendations = append(res.Recommendations, recs...)
	}
	return nil
}

func (p *Pipeline) saveModel(ctx context.Context, res *Result, snap *Snapshot) (storage.ModelMetadata, error) {
	meta := storage.ModelMetadata{
		RatingCount:        snap.Train.Count(),
		UserCount:          snap.Train.DistinctUsers(),
		ItemCount:          snap.Train.DistinctItems(),
		FinalState:         string(res.Fit.State),
		Iterations:         len(res.Fit.Iterations),
		TrainingDurationMS: res.Fit.Duration.Milliseconds(),
	}
	if ev, ok := res.Evaluation(EvalALS); ok {
		meta.HoldoutRMSE = ev.RMSE
	}
	saved, err := p.models.Save(ctx, ModelName, snap.Model, meta)
	if err != nil {
		return saved, fmt.Errorf("save model: %w", err)
	}
	if keep := p.cfg.ModelStore.Retain; keep > 0 {
		if _, err := p.models.Prune(ctx, ModelName, keep); err != nil {
			p.logger.Warn().Err(err).Msg("Model prune failed")
		}
	}
	return saved, nil
}

func (p *Pipeline) persist(ctx context.Context, res *Result, snap *Snapshot) error {
	if snap.Catalog != nil {
		if err := p.db.ReplaceCatalog(ctx, snap.Catalog); err != nil {
			return fmt.Errorf("persist catalog: %w", err)
		}
	}
	if err := p.db.ReplaceRatings(ctx, snap.Store); err != nil {
		return fmt.Errorf("persist ratings: %w", err)
	}

	run := &database.Run{
		RunID:        res.RunID,
		StartedAt:    res.StartedAt,
		Duration:     res.Duration,
		Ratings:      res.Summary.Ratings,
		Users:        res.Summary.Users,
		Items:        res.Summary.Items,
		Sparsity:     res.Summary.Sparsity,
		HoldoutSize:  res.Holdout.Withheld,
		Rank:         p.cfg.ALS.Rank,
		FinalState:   string(res.Fit.State),
		Iterations:   len(res.Fit.Iterations),
		ModelVersion: res.ModelVersion,
	}
	if ev, ok := res.Evaluation(EvalALS); ok && ev.Evaluated > 0 {
		run.ALSRMSE, run.ALSMAE = database.Metric(ev.RMSE), database.Metric(ev.MAE)
	}
	if ev, ok := res.Evaluation(EvalKNN); ok && ev.Evaluated > 0 {
		run.KNNRMSE, run.KNNMAE = database.Metric(ev.RMSE), database.Metric(ev.MAE)
	}
	if err := p.db.SaveRun(ctx, run, res.Fit.Iterations); err != nil {
		return fmt.Errorf("persist run: %w", err)
	}
	if err := p.db.SaveRecommendations(ctx, res.RunID, res.Recommendations); err != nil {
		return fmt.Errorf("persist recommendations: %w", err)
	}
	return nil
}
