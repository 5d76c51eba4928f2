// Package scoring computes weighted KPI performance from a config table and
// an actuals table for one reporting period.
//
// The computation is an inner join on Metric followed by per-row arithmetic
// and a roll-up by Category. It holds no state and never mutates its inputs.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"kpiboard/internal/core"
)

// ScoreRow is one joined metric with its derived scores.
type ScoreRow struct {
	Category       string  `json:"category"`
	Metric         string  `json:"metric"`
	Weight         float64 `json:"weight"`
	Target         float64 `json:"target"`
	Actual         float64 `json:"actual"`
	AchievementPct float64 `json:"achievement_pct"`
	WeightedScore  float64 `json:"weighted_score"`
}

// CategorySummary totals the weighted scores of one category.
type CategorySummary struct {
	Category           string  `json:"category"`
	TotalWeightedScore float64 `json:"total_weighted_score"`
}

// Report is the result of one Compute call.
type Report struct {
	Period  core.Period       `json:"period"`
	Detail  []ScoreRow        `json:"detail"`
	Summary []CategorySummary `json:"summary"`
	// Unmatched lists metrics present in only one of the two tables, config
	// side first. They contribute nothing to Detail or Summary.
	Unmatched []string `json:"unmatched,omitempty"`
}

// Empty reports whether the join produced no rows.
func (r Report) Empty() bool {
	return len(r.Detail) == 0
}

type configCols struct {
	category, metric, weight, target int
}

type actualCols struct {
	metric, actual int
}

// Compute joins config and actuals on Metric for the given period and
// returns per-metric detail (join order) and per-category totals
// (first-seen order).
func Compute(config, actuals core.Table, period core.Period) (Report, error) {
	if !period.Valid() {
		return Report{}, fmt.Errorf("%w: %q", core.ErrInvalidPeriod, string(period))
	}
	cc, err := resolveConfig(config, period)
	if err != nil {
		return Report{}, err
	}
	ac, err := resolveActuals(actuals, period)
	if err != nil {
		return Report{}, err
	}

	// Index actual rows by metric, preserving their table order per key.
	byMetric := make(map[string][]int, len(actuals.Rows))
	for i := range actuals.Rows {
		m, ok := metricKey(actuals.Cell(i, ac.metric))
		if !ok {
			continue
		}
		byMetric[m] = append(byMetric[m], i)
	}

	rep := Report{Period: period, Detail: []ScoreRow{}, Summary: []CategorySummary{}}
	matched := make(map[string]struct{})
	var unmatchedConfig []string
	for i := range config.Rows {
		m, ok := metricKey(config.Cell(i, cc.metric))
		if !ok {
			continue
		}
		hits := byMetric[m]
		if len(hits) == 0 {
			unmatchedConfig = appendUnique(unmatchedConfig, m)
			continue
		}
		matched[m] = struct{}{}
		category := core.CellString(config.Cell(i, cc.category))
		weight := core.Number(config.Cell(i, cc.weight))
		target := core.Number(config.Cell(i, cc.target))
		for _, j := range hits {
			actual := core.Number(actuals.Cell(j, ac.actual))
			ach := Achievement(actual, target)
			rep.Detail = append(rep.Detail, ScoreRow{
				Category:       strings.TrimSpace(category),
				Metric:         m,
				Weight:         weight,
				Target:         target,
				Actual:         actual,
				AchievementPct: ach,
				WeightedScore:  WeightedScore(ach, weight),
			})
		}
	}
	rep.Summary = Summarize(rep.Detail)

	rep.Unmatched = unmatchedConfig
	for i := range actuals.Rows {
		m, ok := metricKey(actuals.Cell(i, ac.metric))
		if !ok {
			continue
		}
		if _, ok := matched[m]; !ok {
			rep.Unmatched = appendUnique(rep.Unmatched, m)
		}
	}
	return rep, nil
}

// Achievement returns actual/target*100. An undefined ratio (zero target)
// or a non-finite result counts as zero achievement.
func Achievement(actual, target float64) float64 {
	if target == 0 {
		return 0
	}
	v := actual / target * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// WeightedScore scales an achievement percentage by a weight expressed in
// percent.
func WeightedScore(achievementPct, weight float64) float64 {
	return achievementPct * weight / 100
}

// Summarize groups detail rows by category in first-seen order, summing
// weighted scores in detail order.
func Summarize(detail []ScoreRow) []CategorySummary {
	out := []CategorySummary{}
	idx := make(map[string]int)
	for _, r := range detail {
		i, ok := idx[r.Category]
		if !ok {
			i = len(out)
			idx[r.Category] = i
			out = append(out, CategorySummary{Category: r.Category})
		}
		out[i].TotalWeightedScore += r.WeightedScore
	}
	return out
}

func resolveConfig(t core.Table, p core.Period) (configCols, error) {
	var c configCols
	var err error
	name := tableName(t, core.ConfigTable)
	if c.category, err = requireColumn(t, name, core.ColCategory); err != nil {
		return c, err
	}
	if c.metric, err = requireColumn(t, name, core.ColMetric); err != nil {
		return c, err
	}
	if c.weight, err = requireColumn(t, name, core.ColWeight); err != nil {
		return c, err
	}
	if c.target, err = requireColumn(t, name, p.TargetColumn()); err != nil {
		return c, err
	}
	return c, nil
}

func resolveActuals(t core.Table, p core.Period) (actualCols, error) {
	var c actualCols
	var err error
	name := tableName(t, core.ActualsTable)
	if c.metric, err = requireColumn(t, name, core.ColMetric); err != nil {
		return c, err
	}
	if c.actual, err = requireColumn(t, name, p.ActualColumn()); err != nil {
		return c, err
	}
	return c, nil
}

func requireColumn(t core.Table, table, col string) (int, error) {
	i := t.ColumnIndex(col)
	if i < 0 {
		return -1, &core.SchemaError{Table: table, Column: col}
	}
	return i, nil
}

func tableName(t core.Table, fallback string) string {
	if t.Name != "" {
		return t.Name
	}
	return fallback
}

// metricKey returns the join key for a cell; blank cells never match.
func metricKey(v any) (string, bool) {
	if core.IsBlank(v) {
		return "", false
	}
	k := strings.TrimSpace(core.CellString(v))
	return k, k != ""
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
