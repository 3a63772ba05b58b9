package main

import (
	"fmt"
	"strings"
)

// clinicalAttributesQuery discovers the clinical attributes available per
// study with value and distinct-value counts.
func clinicalAttributesQuery(studyIDs []string) (string, []interface{}) {
	whereClause := ""
	var args []interface{}
	if len(studyIDs) > 0 {
		whereClause = fmt.Sprintf("WHERE cancer_study_identifier IN (%s)", placeholders(len(studyIDs)))
		for _, id := range studyIDs {
			args = append(args, id)
		}
	}

	query := fmt.Sprintf(`
		SELECT
			cancer_study_identifier AS studyId,
			attribute_name AS attributeName,
			type,
			count(*) AS valueCount,
			count(DISTINCT attribute_value) AS distinctValueCount
		FROM clinical_data_derived
		%s
		GROUP BY cancer_study_identifier, attribute_name, type
		ORDER BY cancer_study_identifier, type, attribute_name`, whereClause)

	return query, args
}

// clinicalDataQuery fetches the rows for one clinical attribute at either
// the sample or the patient level.
func clinicalDataQuery(attributeName string, studyIDs []string, dataType string) (string, []interface{}, error) {
	if dataType == "" {
		dataType = "sample"
	}
	if dataType != "sample" && dataType != "patient" {
		return "", nil, fmt.Errorf("invalid data type %q (expected sample or patient)", dataType)
	}

	idColumn := "sample_unique_id"
	if dataType == "patient" {
		idColumn = "patient_unique_id"
	}

	var sb strings.Builder
	args := []interface{}{attributeName, dataType}
	sb.WriteString(fmt.Sprintf(`
		SELECT
			cancer_study_identifier AS studyId,
			%s AS uniqueId,
			attribute_name AS attributeName,
			attribute_value AS attributeValue,
			type
		FROM clinical_data_derived
		WHERE attribute_name = ?
			AND type = ?`, idColumn))

	if len(studyIDs) > 0 {
		sb.WriteString(fmt.Sprintf("\n\t\t\tAND cancer_study_identifier IN (%s)", placeholders(len(studyIDs))))
		for _, id := range studyIDs {
			args = append(args, id)
		}
	}
	sb.WriteString("\n\t\tORDER BY cancer_study_identifier, uniqueId")

	return sb.String(), args, nil
}

// clinicalSummaryQuery returns the value distribution for one clinical
// attribute, most frequent values first within each study. Empty and NA
// values are excluded from the distribution.
func clinicalSummaryQuery(attributeName string, studyIDs []string) (string, []interface{}) {
	var sb strings.Builder
	args := []interface{}{attributeName}
	sb.WriteString(`
		SELECT
			cancer_study_identifier AS studyId,
			attribute_name AS attributeName,
			type,
			attribute_value AS value,
			count(*) AS count
		FROM clinical_data_derived
		WHERE attribute_name = ?
			AND attribute_value != 'NA'
			AND attribute_value != ''`)

	if len(studyIDs) > 0 {
		sb.WriteString(fmt.Sprintf("\n\t\t\tAND cancer_study_identifier IN (%s)", placeholders(len(studyIDs))))
		for _, id := range studyIDs {
			args = append(args, id)
		}
	}

	sb.WriteString("\n\t\tGROUP BY cancer_study_identifier, attribute_name, type, attribute_value")
	sb.WriteString("\n\t\tORDER BY cancer_study_identifier, count DESC")

	return sb.String(), args
}
