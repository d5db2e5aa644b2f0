// Package detector guesses the business domain of a dataset from keyword
// hits in its headers and a sample of its text values.
package detector

import (
	"io"
	"log/slog"
	"strings"

	"integralq/pkg/contracts/domain"
)

// Defaults.
const (
	DefaultMinScore   = 3
	DefaultSampleSize = 50
)

var keywords = map[domain.Domain][]string{
	domain.Finance: {
		"revenue", "profit", "expense", "budget", "cost", "price", "amount", "balance",
		"transaction", "invoice", "payment", "credit", "debit", "tax", "gross", "net", "margin",
	},
	domain.HR: {
		"employee", "salary", "department", "hire", "manager", "position", "title", "role",
		"team", "staff", "worker", "performance", "review", "tenure", "payroll", "benefits",
	},
	domain.Biology: {
		"gene", "protein", "cell", "species", "dna", "rna", "sequence", "mutation",
		"organism", "sample", "experiment", "concentration", "assay", "culture",
	},
	domain.Education: {
		"student", "grade", "course", "teacher", "class", "subject", "score", "exam",
		"semester", "enrollment", "gpa", "attendance", "curriculum", "academic",
	},
	domain.Sales: {
		"sales", "deal", "lead", "pipeline", "quota", "territory", "opportunity",
		"commission", "order", "units_sold", "prospect", "closed_won",
	},
	domain.Inventory: {
		"inventory", "stock", "warehouse", "sku", "quantity", "supplier", "reorder",
		"on_hand", "backorder", "bin", "shipment", "lot",
	},
	domain.Retail: {
		"retail", "store", "customer", "basket", "loyalty", "discount", "checkout",
		"cashier", "aisle", "promotion", "footfall", "receipt",
	},
	domain.Tech: {
		"server", "cpu", "memory", "latency", "uptime", "deploy", "api", "request",
		"response_time", "incident", "commit", "bug", "cluster", "throughput",
	},
}

// Score is one domain's keyword hit count.
type Score struct {
	Domain domain.Domain `json:"domain"`
	Score  int           `json:"score"`
}

// Detector is stateless and safe for concurrent use.
type Detector struct {
	logger     *slog.Logger
	minScore   int
	sampleSize int
}

// New creates a Detector with the default thresholds.
func New(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Detector{
		logger:     logger.With(slog.String("component", "detector")),
		minScore:   DefaultMinScore,
		sampleSize: DefaultSampleSize,
	}
}

// Detect returns the best-scoring domain, or General when no domain
// reaches the minimum score. Ties keep the domain seen first.
func (d *Detector) Detect(ds *domain.CleanedDataset) domain.Domain {
	best := domain.General
	bestScore := 0
	for _, s := range d.Scores(ds) {
		if s.Score > bestScore {
			best, bestScore = s.Domain, s.Score
		}
	}
	if bestScore < d.minScore {
		best = domain.General
	}
	d.logger.Debug("domain detected", slog.String("domain", string(best)), slog.Int("score", bestScore))
	return best
}

// Scores returns the score of every candidate domain in candidate order.
func (d *Detector) Scores(ds *domain.CleanedDataset) []Score {
	corpus := d.corpus(ds)
	candidates := domain.Candidates()
	out := make([]Score, 0, len(candidates))
	for _, c := range candidates {
		score := 0
		for _, kw := range keywords[c] {
			score += strings.Count(corpus, kw)
		}
		out = append(out, Score{Domain: c, Score: score})
	}
	return out
}

// Confidence is d's share of all keyword hits, as a percentage.
func (d *Detector) Confidence(ds *domain.CleanedDataset, target domain.Domain) float64 {
	total, hit := 0, 0
	for _, s := range d.Scores(ds) {
		total += s.Score
		if s.Domain == target {
			hit = s.Score
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hit) / float64(total) * 100
}

// corpus joins the headers and the first string cells, lowercased.
func (d *Detector) corpus(ds *domain.CleanedDataset) string {
	if ds == nil {
		return ""
	}
	parts := make([]string, 0, len(ds.Headers)+d.sampleSize)
	parts = append(parts, ds.Headers...)

	sampled := 0
rows:
	for _, row := range ds.Rows {
		for _, h := range ds.Headers {
			if sampled >= d.sampleSize {
				break rows
			}
			if s, ok := row[h].Text(); ok {
				parts = append(parts, s)
				sampled++
			}
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}
