package main

import (
	"context"
	"fmt"
	"strings"
)

// sortableStudyFields whitelists the columns get_cancer_studies may sort on.
// The sort field is spliced into the query text, so it must come from here.
var sortableStudyFields = map[string]string{
	"name":              "name",
	"cancer_study_id":   "cancerStudyId",
	"import_date":       "importDate",
	"all_sample_count":  "allSampleCount",
	"type_of_cancer_id": "typeOfCancerId",
}

// cancerStudiesQuery builds the full study-metadata query: study rows joined
// with reference genome, cancer type, per-sample-list counts, and treatment
// and structural-variant rollups.
func cancerStudiesQuery(studyIDs []string, sortField, sortOrder string) (string, []interface{}, error) {
	whereClause := ""
	var args []interface{}
	if len(studyIDs) > 0 {
		whereClause = fmt.Sprintf("WHERE cs.cancer_study_identifier IN (%s)", placeholders(len(studyIDs)))
		for _, id := range studyIDs {
			args = append(args, id)
		}
	}

	orderClause := ""
	if sortField != "" {
		col, ok := sortableStudyFields[strings.ToLower(sortField)]
		if !ok {
			return "", nil, fmt.Errorf("invalid sort field %q", sortField)
		}
		order := "ASC"
		if strings.EqualFold(sortOrder, "DESC") {
			order = "DESC"
		}
		orderClause = fmt.Sprintf("ORDER BY %s %s", col, order)
	}

	query := fmt.Sprintf(`
		WITH sample_counts AS (
			SELECT
				sample_list.cancer_study_id,
				countIf(stable_id LIKE '%%_all') AS allSampleCount,
				countIf(stable_id LIKE '%%_sequenced') AS sequencedSampleCount,
				countIf(stable_id LIKE '%%_cna') AS cnaSampleCount,
				countIf(stable_id LIKE '%%_rna_seq_v2_mrna') AS mrnaRnaSeqV2SampleCount,
				countIf(stable_id LIKE '%%_microrna') AS miRnaSampleCount,
				countIf(stable_id LIKE '%%_mrna' AND stable_id NOT LIKE '%%_rna_seq_v2_mrna') AS mrnaMicroarraySampleCount,
				countIf(stable_id LIKE '%%_methylation_hm27') AS methylationHm27SampleCount,
				countIf(stable_id LIKE '%%_rppa') AS rppaSampleCount,
				countIf(stable_id LIKE '%%_protein_quantification') AS massSpectrometrySampleCount,
				countIf(stable_id LIKE '%%_3way_complete') AS completeSampleCount,
				countIf(stable_id LIKE '%%_rna_seq_mrna') AS mrnaRnaSeqSampleCount
			FROM sample_list_list
			INNER JOIN sample_list ON sample_list_list.list_id = sample_list.list_id
			GROUP BY sample_list.cancer_study_id
		),
		treatment AS (
			SELECT
				count(DISTINCT patient_unique_id) AS count,
				cancer_study_identifier
			FROM clinical_event_derived
			WHERE event_type IN ('Treatment', 'TREATMENT')
			GROUP BY cancer_study_identifier
		),
		sv AS (
			SELECT
				count(DISTINCT sample_unique_id) AS count,
				cancer_study_identifier
			FROM genomic_event_derived
			WHERE variant_type = 'structural_variant'
			GROUP BY cancer_study_identifier
		)
		SELECT
			cs.cancer_study_id AS cancerStudyId,
			cs.cancer_study_identifier AS cancerStudyIdentifier,
			cs.type_of_cancer_id AS typeOfCancerId,
			cs.name AS name,
			cs.description AS description,
			cs.public AS publicStudy,
			cs.pmid AS pmid,
			cs.citation AS citation,
			cs.groups AS groups,
			cs.status AS status,
			cs.import_date AS importDate,
			reference_genome.name AS referenceGenome,
			allSampleCount,
			sequencedSampleCount,
			cnaSampleCount,
			mrnaRnaSeqV2SampleCount,
			miRnaSampleCount,
			mrnaMicroarraySampleCount,
			methylationHm27SampleCount,
			rppaSampleCount,
			massSpectrometrySampleCount,
			completeSampleCount,
			mrnaRnaSeqSampleCount,
			ifNull(treatment.count, 0) AS treatmentCount,
			ifNull(sv.count, 0) AS structuralVariantCount,
			type_of_cancer.name AS typeOfCancerName,
			type_of_cancer.dedicated_color AS typeOfCancerColor,
			type_of_cancer.short_name AS typeOfCancerShortName,
			type_of_cancer.parent AS typeOfCancerParent
		FROM cancer_study AS cs
		INNER JOIN reference_genome ON reference_genome.reference_genome_id = cs.reference_genome_id
		INNER JOIN type_of_cancer ON cs.type_of_cancer_id = type_of_cancer.type_of_cancer_id
		LEFT JOIN treatment ON cs.cancer_study_identifier = treatment.cancer_study_identifier
		LEFT JOIN sv ON sv.cancer_study_identifier = cs.cancer_study_identifier
		INNER JOIN sample_counts ON sample_counts.cancer_study_id = cs.cancer_study_id
		%s
		%s`, whereClause, orderClause)

	return query, args, nil
}

// cancerStudiesSummaryQuery is the metadata-only variant without the
// sample-count rollups.
func cancerStudiesSummaryQuery(studyIDs []string) (string, []interface{}) {
	whereClause := ""
	var args []interface{}
	if len(studyIDs) > 0 {
		whereClause = fmt.Sprintf("WHERE cs.cancer_study_identifier IN (%s)", placeholders(len(studyIDs)))
		for _, id := range studyIDs {
			args = append(args, id)
		}
	}

	query := fmt.Sprintf(`
		SELECT
			cs.cancer_study_id AS cancerStudyId,
			cs.cancer_study_identifier AS cancerStudyIdentifier,
			cs.type_of_cancer_id AS typeOfCancerId,
			cs.name AS name,
			cs.description AS description,
			cs.public AS publicStudy,
			cs.pmid AS pmid,
			cs.citation AS citation,
			cs.groups AS groups,
			cs.status AS status,
			cs.import_date AS importDate,
			reference_genome.name AS referenceGenome,
			type_of_cancer.name AS typeOfCancerName,
			type_of_cancer.short_name AS typeOfCancerShortName
		FROM cancer_study AS cs
		INNER JOIN reference_genome ON reference_genome.reference_genome_id = cs.reference_genome_id
		INNER JOIN type_of_cancer ON cs.type_of_cancer_id = type_of_cancer.type_of_cancer_id
		%s`, whereClause)

	return query, args
}

// searchStudiesQuery matches a keyword against study name, description,
// identifier and cancer-type name, case-insensitively.
func searchStudiesQuery(keyword string) (string, []interface{}) {
	query := `
		SELECT
			cs.cancer_study_id AS cancerStudyId,
			cs.cancer_study_identifier AS cancerStudyIdentifier,
			cs.type_of_cancer_id AS typeOfCancerId,
			cs.name AS name,
			cs.description AS description,
			cs.public AS publicStudy,
			cs.pmid AS pmid,
			cs.citation AS citation,
			type_of_cancer.name AS typeOfCancerName,
			type_of_cancer.short_name AS typeOfCancerShortName
		FROM cancer_study AS cs
		INNER JOIN type_of_cancer ON cs.type_of_cancer_id = type_of_cancer.type_of_cancer_id
		WHERE cs.name ILIKE ?
			OR cs.description ILIKE ?
			OR cs.cancer_study_identifier ILIKE ?
			OR type_of_cancer.name ILIKE ?
		ORDER BY cs.name`

	pattern := "%" + keyword + "%"
	return query, []interface{}{pattern, pattern, pattern, pattern}
}

// studyOverviewQuery is a one-study rollup: metadata, sample total, samples
// with mutations, clinical attribute counts by level.
func studyOverviewQuery(studyID string) (string, []interface{}) {
	query := `
		WITH study_info AS (
			SELECT
				cs.cancer_study_identifier,
				cs.name,
				cs.description,
				type_of_cancer.name AS cancer_type
			FROM cancer_study cs
			INNER JOIN type_of_cancer ON cs.type_of_cancer_id = type_of_cancer.type_of_cancer_id
			WHERE cs.cancer_study_identifier = ?
		),
		sample_count AS (
			SELECT count(*) AS total_samples
			FROM sample_derived
			WHERE cancer_study_identifier = ?
		),
		mutation_count AS (
			SELECT count(DISTINCT sample_unique_id) AS samples_with_mutations
			FROM genomic_event_derived
			WHERE cancer_study_identifier = ?
				AND variant_type = 'mutation'
		),
		sample_attrs AS (
			SELECT count(DISTINCT attribute_name) AS attr_count
			FROM clinical_data_derived
			WHERE cancer_study_identifier = ? AND type = 'sample'
		),
		patient_attrs AS (
			SELECT count(DISTINCT attribute_name) AS attr_count
			FROM clinical_data_derived
			WHERE cancer_study_identifier = ? AND type = 'patient'
		)
		SELECT
			si.cancer_study_identifier AS studyId,
			si.name AS studyName,
			si.description AS description,
			si.cancer_type AS cancerType,
			sc.total_samples AS totalSamples,
			mc.samples_with_mutations AS samplesWithMutations,
			sa.attr_count AS sampleClinicalAttributes,
			pa.attr_count AS patientClinicalAttributes
		FROM study_info si
		CROSS JOIN sample_count sc
		CROSS JOIN mutation_count mc
		CROSS JOIN sample_attrs sa
		CROSS JOIN patient_attrs pa`

	return query, []interface{}{studyID, studyID, studyID, studyID, studyID}
}

// getCancerStudies runs the metadata query (full or summary) with optional
// keyword search.
func getCancerStudies(ctx context.Context, runner SelectRunner, studyIDs []string, keyword, sortField, sortOrder string, summary bool) ([]map[string]interface{}, error) {
	if keyword != "" {
		query, args := searchStudiesQuery(keyword)
		return runner.RunSelect(ctx, query, args...)
	}
	if summary {
		query, args := cancerStudiesSummaryQuery(studyIDs)
		return runner.RunSelect(ctx, query, args...)
	}
	query, args, err := cancerStudiesQuery(studyIDs, sortField, sortOrder)
	if err != nil {
		return nil, err
	}
	return runner.RunSelect(ctx, query, args...)
}
