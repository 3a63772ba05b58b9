package main

import (
	"strings"
	"testing"
)

func TestCancerStudiesQuery(t *testing.T) {
	t.Run("study ids are bound", func(t *testing.T) {
		query, args, err := cancerStudiesQuery([]string{"a", "b"}, "", "")
		if err != nil {
			t.Fatalf("cancerStudiesQuery() error = %v", err)
		}
		if len(args) != 2 {
			t.Errorf("expected 2 bound args, got %d", len(args))
		}
		if !strings.Contains(query, "IN (?, ?)") {
			t.Errorf("expected two placeholders in query")
		}
	})

	t.Run("sort field is whitelisted", func(t *testing.T) {
		query, _, err := cancerStudiesQuery(nil, "import_date", "desc")
		if err != nil {
			t.Fatalf("cancerStudiesQuery() error = %v", err)
		}
		if !strings.Contains(query, "ORDER BY importDate DESC") {
			t.Errorf("expected whitelisted order clause, got none in:\n%s", query)
		}

		if _, _, err := cancerStudiesQuery(nil, "name; DROP TABLE x", ""); err == nil {
			t.Error("expected an error for a non-whitelisted sort field")
		}
	})

	t.Run("like patterns survive formatting", func(t *testing.T) {
		query, _, err := cancerStudiesQuery(nil, "", "")
		if err != nil {
			t.Fatalf("cancerStudiesQuery() error = %v", err)
		}
		if !strings.Contains(query, "LIKE '%_sequenced'") {
			t.Errorf("sample-list patterns were mangled:\n%s", query)
		}
		if strings.Contains(query, "%%") {
			t.Error("unexpanded %% escape left in query")
		}
	})
}

func TestSearchStudiesQuery(t *testing.T) {
	query, args := searchStudiesQuery("glioma")
	if got := strings.Count(query, "ILIKE ?"); got != 4 {
		t.Errorf("expected 4 ILIKE placeholders, got %d", got)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(args))
	}
	for _, a := range args {
		if a != "%glioma%" {
			t.Errorf("expected pattern %%glioma%%, got %v", a)
		}
	}
}

func TestClinicalDataQuery(t *testing.T) {
	t.Run("sample level default", func(t *testing.T) {
		query, args, err := clinicalDataQuery("OS_STATUS", nil, "")
		if err != nil {
			t.Fatalf("clinicalDataQuery() error = %v", err)
		}
		if !strings.Contains(query, "sample_unique_id") {
			t.Error("default level should select sample ids")
		}
		if len(args) != 2 || args[0] != "OS_STATUS" || args[1] != "sample" {
			t.Errorf("unexpected args: %v", args)
		}
	})

	t.Run("patient level with studies", func(t *testing.T) {
		query, args, err := clinicalDataQuery("OS_STATUS", []string{"s1", "s2"}, "patient")
		if err != nil {
			t.Fatalf("clinicalDataQuery() error = %v", err)
		}
		if !strings.Contains(query, "patient_unique_id") {
			t.Error("patient level should select patient ids")
		}
		if len(args) != 4 {
			t.Errorf("expected 4 args, got %d", len(args))
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		if _, _, err := clinicalDataQuery("OS_STATUS", nil, "cohort"); err == nil {
			t.Error("expected an error for an invalid data type")
		}
	})
}

func TestClinicalSummaryQuery(t *testing.T) {
	query, args := clinicalSummaryQuery("SAMPLE_TYPE", []string{"s1"})
	if !strings.Contains(query, "!= 'NA'") || !strings.Contains(query, "!= ''") {
		t.Error("summary must exclude NA and empty values")
	}
	if !strings.Contains(query, "count DESC") {
		t.Error("summary must order most frequent values first")
	}
	if len(args) != 2 {
		t.Errorf("expected 2 args, got %d", len(args))
	}
}

func TestTopMutatedGenesQuery(t *testing.T) {
	query, args := topMutatedGenesQuery([]string{"s1"}, 25)
	if !strings.Contains(query, "!= 'UNCALLED'") {
		t.Error("uncalled events must be excluded")
	}
	if !strings.Contains(query, "ORDER BY mutatedSamples DESC, hugo_gene_symbol ASC") {
		t.Error("expected deterministic ordering with gene tiebreak")
	}
	if args[len(args)-1] != 25 {
		t.Errorf("expected trailing limit arg 25, got %v", args[len(args)-1])
	}
}

func TestGeneMutationsQuery(t *testing.T) {
	query, args := geneMutationsQuery("BRAF", []string{"s1", "s2"})
	if !strings.Contains(query, "variant_type = 'mutation'") {
		t.Error("gene mutations must filter to mutation events")
	}
	if len(args) != 3 || args[0] != "BRAF" {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    AlterationCategory
		wantErr bool
	}{
		{"", CategoryMutation, false},
		{"mutation", CategoryMutation, false},
		{"copy-number", CategoryCopyNumber, false},
		{"structural", CategoryStructural, false},
		{"proteomic", "", true},
		{"MUTATION", "", true},
	}
	for _, tt := range tests {
		got, err := parseCategory(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseCategory(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseCategory(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestCategoryMappings(t *testing.T) {
	variants := map[AlterationCategory]string{
		CategoryMutation:   "mutation",
		CategoryCopyNumber: "cna",
		CategoryStructural: "structural_variant",
	}
	for cat, want := range variants {
		if got := cat.variantType(); got != want {
			t.Errorf("%s.variantType() = %s, want %s", cat, got, want)
		}
	}

	panels := map[AlterationCategory]string{
		CategoryMutation:   "MUTATION_EXTENDED",
		CategoryCopyNumber: "COPY_NUMBER_ALTERATION",
		CategoryStructural: "STRUCTURAL_VARIANT",
	}
	for cat, want := range panels {
		if got := cat.panelAlterationType(); got != want {
			t.Errorf("%s.panelAlterationType() = %s, want %s", cat, got, want)
		}
	}
}

func TestConfidencePolicyAppliesTo(t *testing.T) {
	policy := DefaultConfidencePolicy()
	if !policy.appliesTo(CategoryMutation) || !policy.appliesTo(CategoryStructural) {
		t.Error("default policy applies everywhere")
	}

	policy.ApplyToStructural = false
	if policy.appliesTo(CategoryStructural) {
		t.Error("structural filter should follow the flag")
	}
	if !policy.appliesTo(CategoryCopyNumber) {
		t.Error("non-structural categories always filter")
	}
}
