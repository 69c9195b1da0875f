// Package analyzer runs a letter through validation, normalization, field
// extraction and urgency scoring.
package analyzer

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amtspost/amtspost/internal/config"
	"github.com/amtspost/amtspost/internal/extract"
	"github.com/amtspost/amtspost/internal/history"
	"github.com/amtspost/amtspost/internal/normalize"
	"github.com/amtspost/amtspost/internal/urgency"
)

var (
	ErrTooShort = errors.New("text too short")
	ErrTooLong  = errors.New("text too long")
)

// Report is the full result of analyzing one letter.
type Report struct {
	ID         string                `json:"id"`
	Source     string                `json:"source"`
	AnalyzedAt time.Time             `json:"analyzed_at"`
	Fields     extract.Fields        `json:"fields"`
	Result     urgency.ScoringResult `json:"result"`
	Highlights urgency.Highlights    `json:"highlights"`
	Text       string                `json:"text"`
}

// Record reduces the report to what may be persisted. Match contexts quote
// the letter and are dropped along with the text.
func (r *Report) Record() *history.Record {
	matches := make([]history.Match, len(r.Result.Matches))
	for i, m := range r.Result.Matches {
		matches[i] = history.Match{
			Keyword:         m.Keyword,
			Category:        m.Category,
			Tier:            m.Tier,
			Weight:          m.OriginalWeight,
			EffectiveWeight: m.EffectiveWeight,
			Neutralized:     m.Neutralized,
			Reason:          m.Reason,
			FromSubject:     m.FromSubject,
		}
	}
	return &history.Record{
		ID:            r.ID,
		Source:        r.Source,
		Tier:          r.Result.Tier,
		Score:         r.Result.Score,
		Category:      r.Result.Category,
		CategoryLabel: r.Result.CategoryLabel,
		Summary:       r.Result.Summary,
		DeadlineDays:  r.Fields.DeadlineDays,
		AnalyzedAt:    r.AnalyzedAt,
		Matches:       matches,
	}
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock replaces time.Now, which anchors relative deadlines.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.log = l }
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	limits normalize.Limits
	now    func() time.Time
	log    *slog.Logger
}

func New(cfg config.Analysis, opts ...Option) *Analyzer {
	a := &Analyzer{
		limits: normalize.Limits{MinChars: cfg.MinChars, MaxChars: cfg.MaxChars},
		now:    time.Now,
		log:    slog.Default(),
	}
	if a.limits.MinChars == 0 {
		a.limits.MinChars = normalize.DefaultLimits.MinChars
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze classifies raw letter text. source names where it came from (a
// file path, "stdin", "imap:<uid>", "web").
func (a *Analyzer) Analyze(source, raw string) (*Report, error) {
	return a.AnalyzeWithDeadline(source, raw, nil)
}

// AnalyzeWithDeadline is Analyze with a known deadline that replaces the one
// read from the text. A nil deadline keeps the extracted one.
func (a *Analyzer) AnalyzeWithDeadline(source, raw string, deadlineDays *int) (*Report, error) {
	v := normalize.Validate(raw, a.limits)
	if !v.Valid {
		sentinel := ErrTooShort
		if v.Message == normalize.MessageTooLong {
			sentinel = ErrTooLong
		}
		return nil, fmt.Errorf("%w: %s", sentinel, v.Message)
	}

	now := a.now()
	fields := extract.FromText(v.Cleaned, now)
	if deadlineDays != nil {
		fields.DeadlineDays = deadlineDays
	}
	result := urgency.Analyze(v.Cleaned, fields.DeadlineDays)

	report := &Report{
		ID:         uuid.NewString(),
		Source:     source,
		AnalyzedAt: now.UTC(),
		Fields:     fields,
		Result:     result,
		Highlights: urgency.Highlight(v.Cleaned),
		Text:       v.Cleaned,
	}

	a.log.Info("letter analyzed",
		"id", report.ID,
		"source", source,
		"tier", result.Tier,
		"score", result.Score,
		"category", result.Category,
		"matches", len(result.Matches),
	)
	return report, nil
}
