package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Frequency computation errors.
var (
	// ErrInvalidStudy means the study identifier does not exist; the whole
	// request is aborted.
	ErrInvalidStudy = errors.New("study identifier does not exist")
	// ErrEmptyGeneSet means an explicit gene list matched no panel coverage
	// rows in the study. This is distinct from a gene with a genuine 0%
	// frequency: these genes were never profiled at all.
	ErrEmptyGeneSet = errors.New("requested genes have no panel coverage in this study")
)

const defaultTopN = 20

// alteredRow is one numerator aggregation row: distinct altered samples and
// raw event count for a gene.
type alteredRow struct {
	Gene         string
	AlteredCount int
	EventCount   int
}

// profiledRow is one denominator aggregation row: distinct samples whose
// panel covered a gene.
type profiledRow struct {
	Gene          string
	ProfiledCount int
}

// frequencyStore is the read interface the calculator needs. The ClickHouse
// client implements it against the derived event and panel-coverage views;
// tests use in-memory fakes.
type frequencyStore interface {
	StudyExists(ctx context.Context, studyID string) (bool, error)
	AlteredCounts(ctx context.Context, req FrequencyRequest) ([]alteredRow, error)
	ProfiledCounts(ctx context.Context, studyID string, category AlterationCategory, genes []string) ([]profiledRow, error)
}

// FrequencyCalculator computes gene-level alteration frequencies with
// gene-specific denominators, so results stay comparable across genes with
// heterogeneous sequencing-panel coverage.
type FrequencyCalculator struct {
	store frequencyStore
}

// NewFrequencyCalculator constructs a calculator over the given store.
func NewFrequencyCalculator(store frequencyStore) *FrequencyCalculator {
	return &FrequencyCalculator{store: store}
}

// Compute runs one frequency computation. It is a pure read: the same
// request against unchanged data yields the same ordered results.
func (f *FrequencyCalculator) Compute(ctx context.Context, req FrequencyRequest) ([]FrequencyResult, error) {
	if strings.TrimSpace(req.StudyID) == "" {
		return nil, fmt.Errorf("study identifier is required")
	}
	if req.Category == "" {
		req.Category = CategoryMutation
	}
	if req.Policy.ExcludedStatuses == nil {
		req.Policy = DefaultConfidencePolicy()
	}
	if req.TopN <= 0 {
		req.TopN = defaultTopN
	}

	exists, err := f.store.StudyExists(ctx, req.StudyID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStudy, req.StudyID)
	}

	numerators, err := f.store.AlteredCounts(ctx, req)
	if err != nil {
		return nil, err
	}

	// The denominator genes are the explicit list when given, otherwise the
	// genes the numerator surfaced (top-N mode).
	explicit := len(req.Genes) > 0
	genes := req.Genes
	if !explicit {
		genes = make([]string, 0, len(numerators))
		for _, n := range numerators {
			genes = append(genes, n.Gene)
		}
	}

	var denominators []profiledRow
	if len(genes) > 0 {
		denominators, err = f.store.ProfiledCounts(ctx, req.StudyID, req.Category, genes)
		if err != nil {
			return nil, err
		}
	}

	if explicit && len(denominators) == 0 {
		return nil, fmt.Errorf("%w: study %q", ErrEmptyGeneSet, req.StudyID)
	}

	return computeFrequencies(req.StudyID, genes, numerators, denominators), nil
}

// computeFrequencies joins numerator and denominator rows per gene and
// derives percentages. It holds the two core invariants: the denominator is
// looked up per (study, gene) key, and a zero denominator yields an
// undefined result rather than a division artifact. A study with uniform
// exome-wide coverage flows through unchanged: every gene's key simply maps
// to the same profiled-sample count.
func computeFrequencies(studyID string, genes []string, numerators []alteredRow, denominators []profiledRow) []FrequencyResult {
	altered := make(map[resultKey]alteredRow, len(numerators))
	for _, n := range numerators {
		altered[resultKey{studyID, n.Gene}] = n
	}
	profiled := make(map[resultKey]int, len(denominators))
	for _, d := range denominators {
		profiled[resultKey{studyID, d.Gene}] = d.ProfiledCount
	}

	seen := make(map[string]bool, len(genes))
	results := make([]FrequencyResult, 0, len(genes))
	for _, gene := range genes {
		if seen[gene] {
			continue
		}
		seen[gene] = true

		key := resultKey{studyID, gene}
		num := altered[key]
		den := profiled[key]

		result := FrequencyResult{
			StudyID:       studyID,
			Gene:          gene,
			AlteredCount:  num.AlteredCount,
			EventCount:    num.EventCount,
			ProfiledCount: den,
		}
		if den > 0 {
			pct := roundOneDecimal(float64(num.AlteredCount) / float64(den) * 100)
			result.Percentage = &pct
		} else {
			result.NotComputable = true
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].AlteredCount != results[j].AlteredCount {
			return results[i].AlteredCount > results[j].AlteredCount
		}
		return results[i].Gene < results[j].Gene
	})

	return results
}

func roundOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}

// StudyExists checks the study identifier against cancer_study.
func (c *ClickHouseClient) StudyExists(ctx context.Context, studyID string) (bool, error) {
	rows, err := c.RunSelect(ctx,
		"SELECT 1 AS found FROM cancer_study WHERE cancer_study_identifier = ? LIMIT 1", studyID)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// AlteredCounts aggregates the numerator: distinct samples with at least one
// qualifying in-panel event per gene. Off-panel events are false negatives
// elsewhere, not extra counts here, so they never enter the numerator.
func (c *ClickHouseClient) AlteredCounts(ctx context.Context, req FrequencyRequest) ([]alteredRow, error) {
	return alteredCountsWith(ctx, c, req)
}

func alteredCountsWith(ctx context.Context, runner SelectRunner, req FrequencyRequest) ([]alteredRow, error) {
	var sb strings.Builder
	args := []interface{}{req.StudyID, req.Category.variantType()}

	sb.WriteString(`
		SELECT
			hugo_gene_symbol,
			count(DISTINCT sample_unique_id) AS altered_count,
			count(*) AS event_count
		FROM genomic_event_derived
		WHERE cancer_study_identifier = ?
			AND variant_type = ?
			AND panel_flag != 'out_of_panel'`)

	if req.Policy.appliesTo(req.Category) && len(req.Policy.ExcludedStatuses) > 0 {
		sb.WriteString(fmt.Sprintf(
			"\n\t\t\tAND upper(mutation_status) NOT IN (%s)",
			placeholders(len(req.Policy.ExcludedStatuses))))
		for _, s := range req.Policy.ExcludedStatuses {
			args = append(args, strings.ToUpper(s))
		}
	}

	if len(req.Genes) > 0 {
		sb.WriteString(fmt.Sprintf("\n\t\t\tAND hugo_gene_symbol IN (%s)", placeholders(len(req.Genes))))
		for _, g := range req.Genes {
			args = append(args, g)
		}
	}

	sb.WriteString("\n\t\tGROUP BY hugo_gene_symbol")
	sb.WriteString("\n\t\tORDER BY altered_count DESC, hugo_gene_symbol ASC")
	if len(req.Genes) == 0 {
		sb.WriteString("\n\t\tLIMIT ?")
		args = append(args, req.TopN)
	}

	rows, err := runner.RunSelect(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate altered samples: %w", err)
	}

	out := make([]alteredRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, alteredRow{
			Gene:         asString(row["hugo_gene_symbol"]),
			AlteredCount: asInt(row["altered_count"]),
			EventCount:   asInt(row["event_count"]),
		})
	}
	return out, nil
}

// ProfiledCounts aggregates the denominator: distinct samples whose panel
// covered each gene for the category, aggregated per gene within the study.
func (c *ClickHouseClient) ProfiledCounts(ctx context.Context, studyID string, category AlterationCategory, genes []string) ([]profiledRow, error) {
	query := fmt.Sprintf(`
		SELECT
			gpg.gene AS hugo_gene_symbol,
			count(DISTINCT sgp.sample_unique_id) AS profiled_count
		FROM sample_to_gene_panel_derived sgp
		JOIN gene_panel_to_gene_derived gpg ON sgp.gene_panel_id = gpg.gene_panel_id
		WHERE sgp.cancer_study_identifier = ?
			AND sgp.alteration_type = ?
			AND gpg.gene IN (%s)
		GROUP BY gpg.gene`, placeholders(len(genes)))

	args := make([]interface{}, 0, len(genes)+2)
	args = append(args, studyID, category.panelAlterationType())
	for _, g := range genes {
		args = append(args, g)
	}

	rows, err := c.RunSelect(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate profiled samples: %w", err)
	}

	out := make([]profiledRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, profiledRow{
			Gene:          asString(row["hugo_gene_symbol"]),
			ProfiledCount: asInt(row["profiled_count"]),
		})
	}
	return out, nil
}

// MutationCountsForGene is the single-gene rollup: how many samples carry a
// mutation in the gene versus how many were profiled for it.
func (f *FrequencyCalculator) MutationCountsForGene(ctx context.Context, studyID, gene string) (*MutationCounts, error) {
	results, err := f.Compute(ctx, FrequencyRequest{
		StudyID:  studyID,
		Genes:    []string{gene},
		Category: CategoryMutation,
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no result for gene %q", gene)
	}

	r := results[0]
	counts := &MutationCounts{
		Gene:          r.Gene,
		MutatedCount:  r.AlteredCount,
		ProfiledCount: r.ProfiledCount,
	}
	if r.ProfiledCount > r.AlteredCount {
		counts.NotMutatedCount = r.ProfiledCount - r.AlteredCount
	}
	return counts, nil
}

// placeholders returns n comma-separated bound-parameter markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case int32:
		return int(n)
	case uint32:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
