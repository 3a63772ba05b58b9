package main

import (
	"fmt"
	"strings"
)

// geneMutationsQuery fetches the per-event detail rows for one gene,
// optionally restricted to a set of studies.
func geneMutationsQuery(gene string, studyIDs []string) (string, []interface{}) {
	var sb strings.Builder
	args := []interface{}{gene}
	sb.WriteString(`
		SELECT
			cancer_study_identifier AS studyId,
			sample_unique_id AS sampleId,
			patient_unique_id AS patientId,
			hugo_gene_symbol AS geneSymbol,
			entrez_gene_id AS entrezGeneId,
			mutation_type AS mutationType,
			mutation_status AS mutationStatus,
			variant_type AS variantType,
			protein_change AS proteinChange,
			amino_acid_change AS aminoAcidChange
		FROM genomic_event_derived
		WHERE hugo_gene_symbol = ?
			AND variant_type = 'mutation'`)

	if len(studyIDs) > 0 {
		sb.WriteString(fmt.Sprintf("\n\t\t\tAND cancer_study_identifier IN (%s)", placeholders(len(studyIDs))))
		for _, id := range studyIDs {
			args = append(args, id)
		}
	}
	sb.WriteString("\n\t\tORDER BY cancer_study_identifier, sample_unique_id")

	return sb.String(), args
}

// mutationCountsByTypeQuery groups mutation events by mutation type.
func mutationCountsByTypeQuery(genes []string) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}
	sb.WriteString(`
		SELECT
			hugo_gene_symbol AS geneSymbol,
			replace(mutation_type, '_', ' ') AS label,
			mutation_type AS value,
			count(*) AS count,
			count(DISTINCT sample_unique_id) AS uniqueCount
		FROM genomic_event_derived
		WHERE variant_type = 'mutation'`)

	if len(genes) > 0 {
		sb.WriteString(fmt.Sprintf("\n\t\t\tAND hugo_gene_symbol IN (%s)", placeholders(len(genes))))
		for _, g := range genes {
			args = append(args, g)
		}
	}

	sb.WriteString("\n\t\tGROUP BY mutation_type, hugo_gene_symbol")
	sb.WriteString("\n\t\tORDER BY hugo_gene_symbol, count DESC")

	return sb.String(), args
}

// cnaCountsQuery counts copy-number alterations per gene and direction. The
// signed magnitude is translated into its conventional label.
func cnaCountsQuery(genes []string) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}
	sb.WriteString(`
		SELECT
			hugo_gene_symbol AS geneSymbol,
			multiIf(
				alteration_value = '2', 'Amplified',
				alteration_value = '1', 'Gained',
				alteration_value = '0', 'Diploid',
				alteration_value = '-1', 'Heterozygously deleted',
				alteration_value = '-2', 'Homozygously deleted',
				'NA'
			) AS label,
			toString(alteration_value) AS value,
			count(*) AS count
		FROM genetic_alteration_derived
		WHERE multiIf(
				alteration_value = '' OR upperUTF8(alteration_value) = 'NA' OR
				upperUTF8(alteration_value) = 'NAN' OR upperUTF8(alteration_value) = 'N/A',
				'NA',
				alteration_value
			) != 'NA'
			AND profile_type = 'cna'`)

	if len(genes) > 0 {
		sb.WriteString(fmt.Sprintf("\n\t\t\tAND hugo_gene_symbol IN (%s)", placeholders(len(genes))))
		for _, g := range genes {
			args = append(args, g)
		}
	}

	sb.WriteString("\n\t\tGROUP BY hugo_gene_symbol, alteration_value")
	sb.WriteString("\n\t\tORDER BY hugo_gene_symbol, alteration_value")

	return sb.String(), args
}

// topMutatedGenesQuery lists the most frequently mutated genes. UNCALLED
// events are attempted-but-unresolved calls and never count.
func topMutatedGenesQuery(studyIDs []string, limit int) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}
	sb.WriteString(`
		SELECT
			hugo_gene_symbol AS geneSymbol,
			count(DISTINCT sample_unique_id) AS mutatedSamples,
			count(DISTINCT cancer_study_identifier) AS studiesWithMutations,
			count(*) AS totalMutations
		FROM genomic_event_derived
		WHERE variant_type = 'mutation'
			AND upper(mutation_status) != 'UNCALLED'`)

	if len(studyIDs) > 0 {
		sb.WriteString(fmt.Sprintf("\n\t\t\tAND cancer_study_identifier IN (%s)", placeholders(len(studyIDs))))
		for _, id := range studyIDs {
			args = append(args, id)
		}
	}

	sb.WriteString("\n\t\tGROUP BY hugo_gene_symbol")
	sb.WriteString("\n\t\tORDER BY mutatedSamples DESC, hugo_gene_symbol ASC")
	sb.WriteString("\n\t\tLIMIT ?")
	args = append(args, limit)

	return sb.String(), args
}

// molecularProfileSampleCountsQuery counts samples per molecular profile
// within each study, with the study prefix stripped from the profile id.
func molecularProfileSampleCountsQuery() string {
	return `
		SELECT
			replaceOne(genetic_profile.stable_id,
				concat(sample_derived.cancer_study_identifier, '_'), '') AS value,
			genetic_profile.name AS label,
			count(sample_profile.genetic_profile_id) AS count
		FROM sample_profile
		LEFT JOIN sample_derived ON sample_profile.sample_id = sample_derived.internal_id
		LEFT JOIN genetic_profile ON sample_profile.genetic_profile_id = genetic_profile.genetic_profile_id
		GROUP BY genetic_profile.stable_id, genetic_profile.name, sample_derived.cancer_study_identifier`
}
