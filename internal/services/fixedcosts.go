package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/core"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/log"
)

// keywordRule maps description patterns to a named recurring cost group with
// a canonical category.
type keywordRule struct {
	name     string
	category string
	pattern  *regexp.Regexp
}

var keywordRules = []keywordRule{
	{"Miete", "Rechnungen", regexp.MustCompile(`(?i)\b(miete|rent|kaltmiete|warmmiete)\b`)},
	{"Strom & Gas", "Rechnungen", regexp.MustCompile(`(?i)\b(strom|gas|energie|stadtwerke)\b`)},
	{"Internet & Telefon", "Rechnungen", regexp.MustCompile(`(?i)\b(internet|telefon|handy|mobilfunk|dsl)\b`)},
	{"Versicherung", "Versicherung", regexp.MustCompile(`(?i)\b(versicherung|insurance|haftpflicht)\b`)},
	{"Streaming", "Abonnement", regexp.MustCompile(`(?i)\b(netflix|spotify|disney|prime|abo|subscription)\b`)},
	{"Fitnessstudio", "Abonnement", regexp.MustCompile(`(?i)\b(fitness|gym|fitnessstudio)\b`)},
	{"Rundfunkbeitrag", "Rechnungen", regexp.MustCompile(`(?i)\b(gez|rundfunk|rundfunkbeitrag)\b`)},
}

// recurringCategories mark transactions as recurring even without a keyword hit.
var recurringCategories = map[string]bool{
	"Rechnungen":   true,
	"Versicherung": true,
	"Abonnement":   true,
	"Miete":        true,
	"Transport":    true,
}

// Frequency classification boundaries, in days of mean gap.
const (
	weeklyGapDays   = 8
	biWeeklyGapDays = 20
	monthlyGapDays  = 45
)

// FixedCostAnalyzer derives recurring cost insights from transaction history
// and upcoming bills. Insights are a view: they are recomputed per call and
// never persisted.
type FixedCostAnalyzer struct {
	logger *log.Logger
}

func NewFixedCostAnalyzer(logger *log.Logger) *FixedCostAnalyzer {
	return &FixedCostAnalyzer{logger: logger.WithComponent(log.ComponentBudget)}
}

type costGroup struct {
	name       string
	category   string
	keywordHit bool
	upcoming   bool
	amounts    []int64
	dates      []time.Time
}

// Analyze groups expenses into recurring cost clusters and estimates their
// frequency, confidence and next due date.
func (a *FixedCostAnalyzer) Analyze(history, upcoming []core.Transaction) core.FixedCostAnalysis {
	groups := make(map[string]*costGroup)

	collect := func(txs []core.Transaction, fromUpcoming bool) {
		for _, tx := range txs {
			if !tx.IsExpense() {
				continue
			}
			var key, name, category string
			hit := false
			switch rule, ok := matchKeyword(tx.Description); {
			case ok:
				key, name, category, hit = strings.ToLower(rule.name), rule.name, rule.category, true
			case recurringCategories[tx.Category]:
				key, name, category = "category:"+tx.Category, tx.Category, tx.Category
			case fromUpcoming:
				// Upcoming bills always count, keyed by description.
				name = strings.TrimSpace(tx.Description)
				key = strings.ToLower(name)
				category = tx.Category
				if category == "" {
					category = "Rechnungen"
				}
			default:
				continue
			}
			g, ok := groups[key]
			if !ok {
				// The source sticks with whichever list seeded the group.
				g = &costGroup{name: name, category: category, upcoming: fromUpcoming}
				groups[key] = g
			}
			g.keywordHit = g.keywordHit || hit
			g.amounts = append(g.amounts, tx.Amount.Cents)
			g.dates = append(g.dates, tx.Date)
		}
	}
	collect(history, false)
	collect(upcoming, true)

	insights := make([]core.FixedCostInsight, 0, len(groups))
	var total int64
	for key, g := range groups {
		insight := g.toInsight(key)
		total += insight.AverageAmount.Cents
		insights = append(insights, insight)
	}

	sort.Slice(insights, func(i, j int) bool {
		if insights[i].AverageAmount.Cents != insights[j].AverageAmount.Cents {
			return insights[i].AverageAmount.Cents > insights[j].AverageAmount.Cents
		}
		return insights[i].Name < insights[j].Name
	})

	if a.logger != nil {
		a.logger.Debug("fixed cost analysis complete",
			"groups", len(insights),
			"total_cents", total)
	}
	return core.FixedCostAnalysis{Total: core.Money{Cents: total}, Insights: insights}
}

func matchKeyword(description string) (keywordRule, bool) {
	for _, rule := range keywordRules {
		if rule.pattern.MatchString(description) {
			return rule, true
		}
	}
	return keywordRule{}, false
}

func (g *costGroup) toInsight(key string) core.FixedCostInsight {
	sort.Slice(g.dates, func(i, j int) bool { return g.dates[i].Before(g.dates[j]) })

	var sum int64
	for _, c := range g.amounts {
		sum += c
	}
	avg := sum / int64(len(g.amounts))

	last := g.dates[len(g.dates)-1]
	freq := inferFrequency(g.dates)

	source := core.SourceHistory
	if g.upcoming {
		source = core.SourceUpcoming
	}

	return core.FixedCostInsight{
		ID:             fmt.Sprintf("fc-%s", strings.NewReplacer(" ", "-", ":", "-").Replace(key)),
		Name:           g.name,
		Category:       g.category,
		AverageAmount:  core.Money{Cents: avg},
		LastAmount:     core.Money{Cents: g.amounts[len(g.amounts)-1]},
		Frequency:      freq,
		Confidence:     confidence(g.keywordHit, len(g.dates)),
		LastOccurrence: last,
		NextDueDate:    nextDueDate(last, freq),
		Source:         source,
	}
}

// inferFrequency classifies by the mean gap between occurrences. A single
// occurrence defaults to monthly, the common cadence for bills.
func inferFrequency(dates []time.Time) core.Frequency {
	if len(dates) < 2 {
		return core.Monthly
	}
	var totalGap float64
	for i := 1; i < len(dates); i++ {
		totalGap += dates[i].Sub(dates[i-1]).Hours() / 24
	}
	avgGap := totalGap / float64(len(dates)-1)
	switch {
	case avgGap <= weeklyGapDays:
		return core.Weekly
	case avgGap <= biWeeklyGapDays:
		return core.BiWeekly
	case avgGap <= monthlyGapDays:
		return core.Monthly
	}
	return core.Irregular
}

func nextDueDate(last time.Time, freq core.Frequency) time.Time {
	switch freq {
	case core.Weekly:
		return last.AddDate(0, 0, 7)
	case core.BiWeekly:
		return last.AddDate(0, 0, 14)
	case core.Monthly:
		return last.AddDate(0, 1, 0)
	}
	return time.Time{}
}

// confidence scores how certain the recurring classification is. Keyword
// matches start higher than category-only matches; repeated occurrences add
// up to 0.3, capped at 1.
func confidence(keywordHit bool, occurrences int) float64 {
	base := 0.4
	if keywordHit {
		base = 0.6
	}
	bonus := float64(occurrences) * 0.1
	if bonus > 0.3 {
		bonus = 0.3
	}
	score := base + bonus
	if score > 1 {
		score = 1
	}
	return score
}
