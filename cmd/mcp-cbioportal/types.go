package main

import "fmt"

// AlterationCategory classifies genomic events for filtering and for panel
// coverage lookups.
type AlterationCategory string

const (
	CategoryMutation   AlterationCategory = "mutation"
	CategoryCopyNumber AlterationCategory = "copy-number"
	CategoryStructural AlterationCategory = "structural"
)

// variantType maps a category onto the variant_type value used by
// genomic_event_derived.
func (c AlterationCategory) variantType() string {
	switch c {
	case CategoryCopyNumber:
		return "cna"
	case CategoryStructural:
		return "structural_variant"
	default:
		return "mutation"
	}
}

// panelAlterationType maps a category onto the alteration_type value used
// by sample_to_gene_panel_derived.
func (c AlterationCategory) panelAlterationType() string {
	switch c {
	case CategoryCopyNumber:
		return "COPY_NUMBER_ALTERATION"
	case CategoryStructural:
		return "STRUCTURAL_VARIANT"
	default:
		return "MUTATION_EXTENDED"
	}
}

// parseCategory validates a category value coming in from a tool call.
// An empty value defaults to mutation.
func parseCategory(value string) (AlterationCategory, error) {
	switch AlterationCategory(value) {
	case "", CategoryMutation:
		return CategoryMutation, nil
	case CategoryCopyNumber:
		return CategoryCopyNumber, nil
	case CategoryStructural:
		return CategoryStructural, nil
	default:
		return "", fmt.Errorf("invalid alteration category %q (expected mutation, copy-number or structural)", value)
	}
}

// ConfidencePolicy controls which mutation call confidence states are
// excluded from frequency numerators. The default excludes only UNCALLED;
// UNKNOWN and every other state count.
type ConfidencePolicy struct {
	ExcludedStatuses []string
	// ApplyToStructural extends the confidence filter to structural-variant
	// events. Source data is ambiguous on whether structural calls carry a
	// meaningful status, so this is policy rather than hard-coded.
	ApplyToStructural bool
}

// DefaultConfidencePolicy returns the standard policy: exclude UNCALLED
// events everywhere, including structural variants.
func DefaultConfidencePolicy() ConfidencePolicy {
	return ConfidencePolicy{
		ExcludedStatuses:  []string{"UNCALLED"},
		ApplyToStructural: true,
	}
}

// appliesTo reports whether the confidence filter is active for a category.
func (p ConfidencePolicy) appliesTo(category AlterationCategory) bool {
	if category == CategoryStructural {
		return p.ApplyToStructural
	}
	return true
}

// FrequencyRequest describes one alteration-frequency computation.
type FrequencyRequest struct {
	StudyID  string
	Genes    []string // empty means top-N by altered-sample count
	Category AlterationCategory
	Policy   ConfidencePolicy
	TopN     int // used only when Genes is empty
}

// FrequencyResult is the per-gene outcome of a frequency computation.
// The denominator is gene-specific: it is the number of samples whose
// sequencing panel covered this gene for the requested category, never a
// study-wide constant and never another gene's count.
type FrequencyResult struct {
	StudyID       string   `json:"study_id"`
	Gene          string   `json:"gene"`
	AlteredCount  int      `json:"altered_count"`
	EventCount    int      `json:"event_count"`
	ProfiledCount int      `json:"profiled_count"`
	Percentage    *float64 `json:"percentage"`
	NotComputable bool     `json:"not_computable,omitempty"`
}

// resultKey ties a denominator to its (study, gene) pair so one gene's
// profiled-sample count can never be attached to another gene's result.
type resultKey struct {
	studyID string
	gene    string
}

// MutationCounts is the single-gene mutated/profiled rollup.
type MutationCounts struct {
	Gene            string `json:"gene"`
	MutatedCount    int    `json:"mutated_count"`
	NotMutatedCount int    `json:"not_mutated_count"`
	ProfiledCount   int    `json:"profiled_count"`
}
