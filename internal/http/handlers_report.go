package http

import (
	"context"
	"net/http"
	"time"

	"kpiboard/internal/core"
	"kpiboard/internal/export"
	"kpiboard/internal/log"
	"kpiboard/internal/scoring"
)

type detailView struct {
	Category, Metric              string
	Weight, Target, Actual        string
	Achievement, Weighted, Status string
}

type summaryView struct {
	Category string
	Total    string
	Width    int
	Status   string
}

// reportView is the data behind report.html.
type reportView struct {
	Period    core.Period
	Empty     bool
	Detail    []detailView
	Summary   []summaryView
	Unmatched []string
}

func newReportView(rep scoring.Report) reportView {
	v := reportView{Period: rep.Period, Empty: rep.Empty(), Unmatched: rep.Unmatched}
	for _, d := range rep.Detail {
		v.Detail = append(v.Detail, detailView{
			Category:    d.Category,
			Metric:      d.Metric,
			Weight:      formatFixed(d.Weight),
			Target:      formatFixed(d.Target),
			Actual:      formatFixed(d.Actual),
			Achievement: formatFixed(d.AchievementPct),
			Weighted:    formatFixed(d.WeightedScore),
			Status:      statusClass(d.AchievementPct),
		})
	}

	var max float64
	for _, c := range rep.Summary {
		max = maxf(max, c.TotalWeightedScore)
	}
	for _, c := range rep.Summary {
		v.Summary = append(v.Summary, summaryView{
			Category: c.Category,
			Total:    formatFixed(c.TotalWeightedScore),
			Width:    barWidth(c.TotalWeightedScore, max),
			Status:   statusClass(c.TotalWeightedScore),
		})
	}
	return v
}

func maxf(a, b float64) float64 {
	if b > a {
		return b
	}
	return a
}

func (s *Server) computeReport(r *http.Request) (scoring.Report, error) {
	period, err := ParsePeriodParam(r.URL.Query(), time.Now())
	if err != nil {
		return scoring.Report{}, err
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	return s.reports.Compute(ctx, period)
}

func (s *Server) handleReportPartial(w http.ResponseWriter, r *http.Request) {
	rep, err := s.computeReport(r)
	if err != nil {
		logActionError(r.Context(), "Failed to compute report", err, log.OpCompute,
			log.NewFields().WithPeriod(r.URL.Query().Get("period")))
		InlineError(s.templates, err, r.URL.RequestURI(), "#report-result").Write(w)
		return
	}
	body, err := s.execute("report.html", newReportView(rep))
	if err != nil {
		logActionError(r.Context(), "Report template execution failed", err, log.OpRender, nil)
		InternalServerError("Could not render the report.").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

func (s *Server) handleReportExport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.computeReport(r)
	if err != nil {
		logActionError(r.Context(), "Failed to compute report", err, log.OpExport,
			log.NewFields().WithPeriod(r.URL.Query().Get("period")))
		http.Error(w, core.UserMessage(err), statusFor(err))
		return
	}
	data, err := export.Workbook(rep)
	if err != nil {
		logActionError(r.Context(), "Failed to build workbook", err, log.OpExport,
			log.NewFields().WithPeriod(rep.Period.String()))
		http.Error(w, "Could not build the workbook.", http.StatusInternalServerError)
		return
	}
	NewHTMXResponse().
		Header("Content-Type", export.ContentType).
		Header("Content-Disposition", `attachment; filename="`+export.Filename(rep)+`"`).
		Body(data).
		Write(w)
}
