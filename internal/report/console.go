// Bookrec - Book Recommender Evaluation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookrec

package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tomtom215/bookrec/internal/pipeline"
	"github.com/tomtom215/bookrec/internal/recommend"
)

const (
	histogramWidth = 40
	maxTitleWidth  = 48
)

// Titles resolves ISBNs for display. It may be nil.
type Titles func(itemID string) (string, bool)

// SnapshotTitles adapts a snapshot's catalog to Titles.
func SnapshotTitles(s *pipeline.Snapshot) Titles {
	if s == nil {
		return nil
	}
	return func(id string) (string, bool) {
		it, ok := s.Book(id)
		return it.Title, ok
	}
}

type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	header  lipgloss.Style
	muted   lipgloss.Style
	warn    lipgloss.Style
	good    lipgloss.Style
	bar     lipgloss.Style
	box     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		section: r.NewStyle().Bold(true).MarginTop(1),
		header:  r.NewStyle().Bold(true).Underline(true),
		muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		good:    r.NewStyle().Foreground(lipgloss.Color("10")),
		bar:     r.NewStyle().Foreground(lipgloss.Color("6")),
		box:     r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

// Render writes the console summary of res to w.
func Render(w io.Writer, res *pipeline.Result, titles Titles) error {
	st := newStyles(lipgloss.NewRenderer(w))
	blocks := []string{
		st.box.Render(st.title.Render("bookrec run "+res.RunID) + "\n" +
			st.muted.Render(fmt.Sprintf("started %s, took %s", res.StartedAt.Format("2006-01-02 15:04:05"), res.Duration.Round(1e6)))),
		renderInput(st, res),
		renderMatrix(st, res),
		renderHistogram(st, res.Summary.Histogram),
	}
	if len(res.MostRated) > 0 {
		blocks = append(blocks, renderMostRated(st, res.MostRated, titles))
	}
	blocks = append(blocks,
		renderTraining(st, res),
		renderEvaluation(st, res),
		renderRecommendations(st, res, titles),
	)
	_, err := io.WriteString(w, lipgloss.JoinVertical(lipgloss.Left, blocks...)+"\n")
	return err
}

func renderInput(st styles, res *pipeline.Result) string {
	rows := [][]string{fileRow(res.RatingsFile.File, res.RatingsFile.Rows, res.RatingsFile.Parsed, res.RatingsFile.Malformed)}
	if b := res.BooksFile; b != nil {
		rows = append(rows, fileRow(b.File, b.Rows, b.Parsed, b.Malformed))
	}
	out := st.section.Render("Input") + "\n" + table(st, []string{"file", "rows", "parsed", "malformed"}, rows)

	rl := res.RatingLoad
	out += "\n" + fmt.Sprintf("ratings kept %d, invalid %d, unmatched %d, duplicates %d",
		rl.Kept, rl.Invalid, rl.Unmatched, rl.Duplicates)
	if cl := res.CatalogLoad; cl != nil {
		out += "\n" + fmt.Sprintf("books kept %d, invalid %d, duplicates %d", cl.Kept, cl.Invalid, cl.Duplicates)
	}
	return out
}

func fileRow(name string, rows, parsed, malformed int) []string {
	return []string{name, strconv.Itoa(rows), strconv.Itoa(parsed), strconv.Itoa(malformed)}
}

func renderMatrix(st styles, res *pipeline.Result) string {
	s := res.Summary
	rows := [][]string{
		{"users", strconv.Itoa(s.Users)},
		{"items", strconv.Itoa(s.Items)},
		{"ratings", strconv.Itoa(s.Ratings)},
		{"sparsity", fmt.Sprintf("%.6f", s.Sparsity)},
		{"mean rating", fmt.Sprintf("%.3f", s.MeanRating)},
		{"ratings per user", fmt.Sprintf("min %d, max %d, mean %.2f", s.MinUserRatings, s.MaxUserRatings, s.MeanUserRatings)},
		{"ratings per item", fmt.Sprintf("max %d, mean %.2f", s.MaxItemRatings, s.MeanItemRatings)},
	}
	return st.section.Render("Rating matrix") + "\n" + table(st, nil, rows)
}

func renderHistogram(st styles, hist map[int]int) string {
	peak := 0
	for _, n := range hist {
		if n > peak {
			peak = n
		}
	}
	lines := make([]string, 0, recommend.MaxRatingValue)
	for v := recommend.MinRatingValue; v <= recommend.MaxRatingValue; v++ {
		n := hist[v]
		width := 0
		if peak > 0 {
			width = n * histogramWidth / peak
		}
		if n > 0 && width == 0 {
			width = 1
		}
		lines = append(lines, fmt.Sprintf("%2d %s %d", v, st.bar.Render(strings.Repeat("█", width)), n))
	}
	return st.section.Render("Rating histogram") + "\n" + strings.Join(lines, "\n")
}

func renderMostRated(st styles, pop []recommend.ItemPopularity, titles Titles) string {
	rows := make([][]string, 0, len(pop))
	for _, p := range pop {
		rows = append(rows, []string{p.ItemID, title(titles, p.ItemID), strconv.Itoa(p.Count), fmt.Sprintf("%.2f", p.Mean)})
	}
	return st.section.Render("Most rated books") + "\n" + table(st, []string{"isbn", "title", "ratings", "mean"}, rows)
}

func renderTraining(st styles, res *pipeline.Result) string {
	rows := make([][]string, 0, len(res.Fit.Iterations))
	for _, it := range res.Fit.Iterations {
		holdout := "-"
		if it.HoldoutCount > 0 {
			holdout = fmt.Sprintf("%.4f", it.HoldoutObjective)
		}
		rows = append(rows, []string{
			strconv.Itoa(it.Iteration),
			fmt.Sprintf("%.4f", it.TrainObjective),
			fmt.Sprintf("%.4f", it.TrainRMSE),
			holdout,
			string(it.State),
		})
	}
	out := st.section.Render("ALS training") + "\n" +
		table(st, []string{"iter", "objective", "train rmse", "holdout rmse", "state"}, rows) + "\n"

	h := res.Holdout
	out += fmt.Sprintf("holdout withheld %d (usable %d), training %d ratings over %d users and %d items\n",
		h.Withheld, h.HoldoutUsable, h.TrainRatings, h.TrainUsers, h.TrainItems)
	if res.Fit.Warning != "" {
		return out + st.warn.Render("warning: "+res.Fit.Warning)
	}
	return out + st.good.Render(fmt.Sprintf("finished in state %s after %s", res.Fit.State, res.Fit.Duration.Round(1e6)))
}

func renderEvaluation(st styles, res *pipeline.Result) string {
	rows := make([][]string, 0, len(res.Evaluations))
	for _, ev := range res.Evaluations {
		rows = append(rows, []string{
			ev.Name,
			strconv.Itoa(ev.Evaluated),
			strconv.Itoa(ev.Skipped),
			strconv.Itoa(ev.Fallbacks),
			fmt.Sprintf("%.1f%%", 100*ev.Coverage()),
			fmt.Sprintf("%.4f", ev.RMSE),
			fmt.Sprintf("%.4f", ev.MAE),
		})
	}
	sim := res.Similarity
	return st.section.Render("Holdout evaluation") + "\n" +
		table(st, []string{"model", "evaluated", "skipped", "fallbacks", "coverage", "rmse", "mae"}, rows) + "\n" +
		st.muted.Render(fmt.Sprintf("similarity: %s %s >= %.2f, %d entities, %d pairs",
			sim.Axis, sim.Measure, sim.Threshold, sim.Entities, sim.Pairs))
}

func renderRecommendations(st styles, res *pipeline.Result, titles Titles) string {
	head := "Recommendations"
	if res.Query != "" {
		head += fmt.Sprintf(" matching %q (%d books)", res.Query, res.QueryHits)
	}
	if len(res.Recommendations) == 0 {
		return st.section.Render(head) + "\n" + st.muted.Render("none")
	}
	rows := make([][]string, 0, len(res.Recommendations))
	for _, r := range res.Recommendations {
		rows = append(rows, []string{r.UserID, strconv.Itoa(r.Rank), r.ItemID, title(titles, r.ItemID), fmt.Sprintf("%.3f", r.Score)})
	}
	out := st.section.Render(head) + "\n" + table(st, []string{"user", "rank", "isbn", "title", "score"}, rows)
	if len(res.ColdUsers) > 0 {
		out += "\n" + st.warn.Render(fmt.Sprintf("no factors for %d users: %s", len(res.ColdUsers), strings.Join(res.ColdUsers, ", ")))
	}
	return out
}

func title(titles Titles, id string) string {
	if titles == nil {
		return ""
	}
	t, ok := titles(id)
	if !ok {
		return ""
	}
	if r := []rune(t); len(r) > maxTitleWidth {
		return string(r[:maxTitleWidth-1]) + "…"
	}
	return t
}

// table left-aligns cells into columns two spaces apart.
func table(st styles, headers []string, rows [][]string) string {
	cols := len(headers)
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	widths := make([]int, cols)
	measure := func(r []string) {
		for i, c := range r {
			if w := lipgloss.Width(c); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(headers)
	for _, r := range rows {
		measure(r)
	}

	line := func(r []string, style *lipgloss.Style) string {
		var b strings.Builder
		for i, c := range r {
			cell := c + strings.Repeat(" ", widths[i]-lipgloss.Width(c))
			if style != nil {
				cell = style.Render(cell)
			}
			b.WriteString(cell)
			if i < len(r)-1 {
				b.WriteString("  ")
			}
		}
		return strings.TrimRight(b.String(), " ")
	}

	lines := make([]string, 0, len(rows)+1)
	if len(headers) > 0 {
		lines = append(lines, line(headers, &st.header))
	}
	for _, r := range rows {
		lines = append(lines, line(r, nil))
	}
	return strings.Join(lines, "\n")
}
