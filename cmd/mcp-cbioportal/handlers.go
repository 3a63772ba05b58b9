package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// CBioPortalServer implements the MCP tools. All data access goes through a
// SelectRunner so handlers can be exercised against fakes.
type CBioPortalServer struct {
	runner     SelectRunner
	calculator *FrequencyCalculator
	audit      *AuditStore
}

// NewCBioPortalServer constructs the tool server. audit may be nil, in
// which case query auditing is disabled.
func NewCBioPortalServer(runner SelectRunner, calculator *FrequencyCalculator, audit *AuditStore) *CBioPortalServer {
	return &CBioPortalServer{
		runner:     runner,
		calculator: calculator,
		audit:      audit,
	}
}

// runAudited executes a query through the runner and records it in the
// audit store, including failures.
func (s *CBioPortalServer) runAudited(ctx context.Context, tool, query string, args ...interface{}) ([]map[string]interface{}, error) {
	start := time.Now()
	rows, err := s.runner.RunSelect(ctx, query, args...)
	s.audit.Record(ctx, tool, query, time.Since(start), len(rows), err)
	return rows, err
}

// toolRunner is a SelectRunner view of runAudited for code that takes a
// runner rather than a server.
type toolRunner struct {
	s    *CBioPortalServer
	tool string
}

func (r toolRunner) RunSelect(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error) {
	return r.s.runAudited(ctx, r.tool, query, args...)
}

// registerTools wires every tool into the MCP server.
func registerTools(srv *server.MCPServer, s *CBioPortalServer) {
	runSelectTool := mcp.NewTool(
		"clickhouse_run_select_query",
		mcp.WithDescription("Execute a ClickHouse SQL SELECT query. Only read-only SELECT statements are allowed; INSERT, UPDATE, DELETE and DDL are rejected. Returns an object with a 'rows' field containing the result rows."),
		mcp.WithString("query",
			mcp.Description("The SELECT query to execute"),
			mcp.Required(),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of rows to return (default: 1000, max: 10000). Applied only when the query has no LIMIT clause."),
			mcp.Min(1),
			mcp.Max(maxRowLimit),
		),
	)

	listTablesTool := mcp.NewTool(
		"clickhouse_list_tables",
		mcp.WithDescription("List all tables in the current database with primary key, row count and comment. Table comments describe what each table holds; consult them before writing queries."),
	)

	listColumnsTool := mcp.NewTool(
		"clickhouse_list_table_columns",
		mcp.WithDescription("List all columns of a table with their ClickHouse types and comments"),
		mcp.WithString("table",
			mcp.Description("Table name in the current database"),
			mcp.Required(),
		),
	)

	cancerStudiesTool := mcp.NewTool(
		"get_cancer_studies",
		mcp.WithDescription("List cancer studies with metadata: cancer type, reference genome, citation, and per-profile sample counts. Use 'keyword' to search by name, description, identifier or cancer type; use 'summary' for metadata without the sample-count rollups."),
		mcp.WithArray("study_ids",
			mcp.Description("Restrict to these study identifiers"),
			mcp.WithStringItems(),
		),
		mcp.WithString("keyword",
			mcp.Description("Search keyword matched against name, description, identifier and cancer type"),
		),
		mcp.WithString("sort_field",
			mcp.Description("Sort field: name, cancer_study_id, import_date, all_sample_count or type_of_cancer_id"),
		),
		mcp.WithString("sort_order",
			mcp.Description("ASC (default) or DESC"),
		),
		mcp.WithBoolean("summary",
			mcp.Description("Return metadata only, without sample-count rollups"),
		),
	)

	studyOverviewTool := mcp.NewTool(
		"get_study_overview",
		mcp.WithDescription("Get a comprehensive overview of one study: metadata, total samples, samples with mutations, and clinical attribute counts"),
		mcp.WithString("study_id",
			mcp.Description("Study identifier"),
			mcp.Required(),
		),
	)

	clinicalAttributesTool := mcp.NewTool(
		"get_clinical_attributes",
		mcp.WithDescription("Discover available clinical attributes per study, with value and distinct-value counts, at both sample and patient level"),
		mcp.WithArray("study_ids",
			mcp.Description("Restrict to these study identifiers"),
			mcp.WithStringItems(),
		),
	)

	clinicalDataTool := mcp.NewTool(
		"get_clinical_data",
		mcp.WithDescription("Get the values of one clinical attribute, per sample or per patient"),
		mcp.WithString("attribute_name",
			mcp.Description("Clinical attribute name, e.g. OS_STATUS"),
			mcp.Required(),
		),
		mcp.WithString("data_type",
			mcp.Description("'sample' (default) or 'patient'"),
		),
		mcp.WithArray("study_ids",
			mcp.Description("Restrict to these study identifiers"),
			mcp.WithStringItems(),
		),
	)

	clinicalSummaryTool := mcp.NewTool(
		"get_clinical_summary",
		mcp.WithDescription("Get the value distribution of a clinical attribute per study, most frequent values first"),
		mcp.WithString("attribute_name",
			mcp.Description("Clinical attribute name"),
			mcp.Required(),
		),
		mcp.WithArray("study_ids",
			mcp.Description("Restrict to these study identifiers"),
			mcp.WithStringItems(),
		),
	)

	alterationFrequenciesTool := mcp.NewTool(
		"get_alteration_frequencies",
		mcp.WithDescription("Compute gene alteration frequencies for a study with correct per-gene denominators. Sequencing panels differ between samples, so each gene's frequency is its altered-sample count divided by the number of samples whose panel covered that gene. Genes with no panel coverage are reported as not computable instead of 0%. Without a gene list, the most altered genes are returned."),
		mcp.WithString("study_id",
			mcp.Description("Study identifier"),
			mcp.Required(),
		),
		mcp.WithArray("genes",
			mcp.Description("Hugo gene symbols to compute frequencies for; omit for top-N by altered-sample count"),
			mcp.WithStringItems(),
		),
		mcp.WithString("category",
			mcp.Description("Alteration category: mutation (default), copy-number or structural"),
		),
		mcp.WithArray("excluded_statuses",
			mcp.Description("Mutation call confidence states excluded from numerators (default: UNCALLED only; UNKNOWN counts)"),
			mcp.WithStringItems(),
		),
		mcp.WithBoolean("apply_confidence_to_structural",
			mcp.Description("Whether the confidence filter also applies to structural-variant events (default: true)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of genes in top-N mode (default: 20)"),
			mcp.Min(1),
			mcp.Max(500),
		),
	)

	mutationCountsTool := mcp.NewTool(
		"get_mutation_counts",
		mcp.WithDescription("Get mutated, not-mutated and profiled sample counts for one gene in one study. The profiled count is gene-specific panel coverage, not the study sample total."),
		mcp.WithString("study_id",
			mcp.Description("Study identifier"),
			mcp.Required(),
		),
		mcp.WithString("gene",
			mcp.Description("Hugo gene symbol"),
			mcp.Required(),
		),
	)

	geneMutationsTool := mcp.NewTool(
		"get_gene_mutations",
		mcp.WithDescription("Get detailed mutation event rows for a gene: sample, patient, mutation type and status, protein change"),
		mcp.WithString("gene",
			mcp.Description("Hugo gene symbol"),
			mcp.Required(),
		),
		mcp.WithArray("study_ids",
			mcp.Description("Restrict to these study identifiers"),
			mcp.WithStringItems(),
		),
	)

	mutationCountsByTypeTool := mcp.NewTool(
		"get_mutation_counts_by_type",
		mcp.WithDescription("Count mutation events grouped by mutation type, with distinct-sample counts"),
		mcp.WithArray("genes",
			mcp.Description("Restrict to these Hugo gene symbols"),
			mcp.WithStringItems(),
		),
	)

	cnaCountsTool := mcp.NewTool(
		"get_cna_counts",
		mcp.WithDescription("Count copy-number alterations per gene and direction (Amplified, Gained, Diploid, Heterozygously deleted, Homozygously deleted)"),
		mcp.WithArray("genes",
			mcp.Description("Restrict to these Hugo gene symbols"),
			mcp.WithStringItems(),
		),
	)

	topMutatedGenesTool := mcp.NewTool(
		"get_top_mutated_genes",
		mcp.WithDescription("Get the most frequently mutated genes across studies, by distinct mutated samples. UNCALLED events are excluded."),
		mcp.WithArray("study_ids",
			mcp.Description("Restrict to these study identifiers"),
			mcp.WithStringItems(),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of genes to return (default: 20)"),
			mcp.Min(1),
			mcp.Max(500),
		),
	)

	profileSampleCountsTool := mcp.NewTool(
		"get_molecular_profile_sample_counts",
		mcp.WithDescription("Count samples per molecular profile within each study"),
	)

	queryLogTool := mcp.NewTool(
		"get_query_log",
		mcp.WithDescription("Get the most recent entries of the query audit log (requires auditing to be enabled)"),
		mcp.WithNumber("limit",
			mcp.Description("Number of entries to return (default: 50)"),
			mcp.Min(1),
			mcp.Max(1000),
		),
	)

	srv.AddTool(runSelectTool, s.handleRunSelectQuery)
	srv.AddTool(listTablesTool, s.handleListTables)
	srv.AddTool(listColumnsTool, s.handleListTableColumns)
	srv.AddTool(cancerStudiesTool, s.handleGetCancerStudies)
	srv.AddTool(studyOverviewTool, s.handleGetStudyOverview)
	srv.AddTool(clinicalAttributesTool, s.handleGetClinicalAttributes)
	srv.AddTool(clinicalDataTool, s.handleGetClinicalData)
	srv.AddTool(clinicalSummaryTool, s.handleGetClinicalSummary)
	srv.AddTool(alterationFrequenciesTool, s.handleGetAlterationFrequencies)
	srv.AddTool(mutationCountsTool, s.handleGetMutationCounts)
	srv.AddTool(geneMutationsTool, s.handleGetGeneMutations)
	srv.AddTool(mutationCountsByTypeTool, s.handleGetMutationCountsByType)
	srv.AddTool(cnaCountsTool, s.handleGetCNACounts)
	srv.AddTool(topMutatedGenesTool, s.handleGetTopMutatedGenes)
	srv.AddTool(profileSampleCountsTool, s.handleGetMolecularProfileSampleCounts)
	srv.AddTool(queryLogTool, s.handleGetQueryLog)
}

// handleRunSelectQuery executes an arbitrary read-only query after
// validation, appending a LIMIT clause when the query has none.
func (s *CBioPortalServer) handleRunSelectQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required and must be a non-empty string"), nil
	}

	if err := validateSelectQuery(query); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	limit := clampLimit(request.GetInt("limit", defaultRowLimit))
	if !strings.Contains(strings.ToUpper(query), "LIMIT") {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}

	rows, err := s.runAudited(ctx, "clickhouse_run_select_query", query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"rows":      rows,
		"row_count": len(rows),
	})
}

// handleListTables lists the tables of the current database with metadata.
func (s *CBioPortalServer) handleListTables(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := "SELECT name, primary_key, total_rows, comment FROM system.tables WHERE database = currentDatabase()"

	rows, err := s.runAudited(ctx, "clickhouse_list_tables", query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"tables": rows,
		"count":  len(rows),
	})
}

// handleListTableColumns lists the columns of one table. The table name is
// validated and bound as a parameter, never spliced into the query.
func (s *CBioPortalServer) handleListTableColumns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, err := request.RequireString("table")
	if err != nil {
		return mcp.NewToolResultError("table is required"), nil
	}
	if err := validateTableName(table); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	query := "SELECT name, type, comment FROM system.columns WHERE table = ? AND database = currentDatabase()"

	rows, err := s.runAudited(ctx, "clickhouse_list_table_columns", query, table)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"table":   table,
		"columns": rows,
		"count":   len(rows),
	})
}

// handleGetCancerStudies runs the study metadata / summary / search query.
func (s *CBioPortalServer) handleGetCancerStudies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	studyIDs := request.GetStringSlice("study_ids", nil)
	keyword := request.GetString("keyword", "")
	sortField := request.GetString("sort_field", "")
	sortOrder := request.GetString("sort_order", "ASC")
	summary := request.GetBool("summary", false)

	rows, err := getCancerStudies(ctx, toolRunner{s, "get_cancer_studies"}, studyIDs, keyword, sortField, sortOrder, summary)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"studies": rows,
		"count":   len(rows),
	})
}

// handleGetStudyOverview runs the one-study rollup.
func (s *CBioPortalServer) handleGetStudyOverview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	studyID, err := request.RequireString("study_id")
	if err != nil || studyID == "" {
		return mcp.NewToolResultError("study_id is required"), nil
	}

	query, args := studyOverviewQuery(studyID)
	rows, err := s.runAudited(ctx, "get_study_overview", query, args...)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(rows) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("study %q not found", studyID)), nil
	}

	return jsonResult(map[string]interface{}{
		"overview": rows[0],
	})
}

// handleGetClinicalAttributes discovers clinical attributes per study.
func (s *CBioPortalServer) handleGetClinicalAttributes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	studyIDs := request.GetStringSlice("study_ids", nil)

	query, args := clinicalAttributesQuery(studyIDs)
	rows, err := s.runAudited(ctx, "get_clinical_attributes", query, args...)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"attributes": rows,
		"count":      len(rows),
	})
}

// handleGetClinicalData fetches one attribute's values.
func (s *CBioPortalServer) handleGetClinicalData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	attributeName, err := request.RequireString("attribute_name")
	if err != nil || attributeName == "" {
		return mcp.NewToolResultError("attribute_name is required"), nil
	}
	dataType := request.GetString("data_type", "sample")
	studyIDs := request.GetStringSlice("study_ids", nil)

	query, args, err := clinicalDataQuery(attributeName, studyIDs, dataType)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rows, err := s.runAudited(ctx, "get_clinical_data", query, args...)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"attribute": attributeName,
		"data_type": dataType,
		"rows":      rows,
		"count":     len(rows),
	})
}

// handleGetClinicalSummary returns an attribute's value distribution.
func (s *CBioPortalServer) handleGetClinicalSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	attributeName, err := request.RequireString("attribute_name")
	if err != nil || attributeName == "" {
		return mcp.NewToolResultError("attribute_name is required"), nil
	}
	studyIDs := request.GetStringSlice("study_ids", nil)

	query, args := clinicalSummaryQuery(attributeName, studyIDs)
	rows, err := s.runAudited(ctx, "get_clinical_summary", query, args...)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"attribute": attributeName,
		"values":    rows,
		"count":     len(rows),
	})
}

// handleGetAlterationFrequencies runs the denominator-aware frequency
// computation. InvalidStudy aborts the request; per-gene undefined
// frequencies are reported inline.
func (s *CBioPortalServer) handleGetAlterationFrequencies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	studyID, err := request.RequireString("study_id")
	if err != nil || strings.TrimSpace(studyID) == "" {
		return mcp.NewToolResultError("study_id is required"), nil
	}

	category, err := parseCategory(request.GetString("category", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	policy := DefaultConfidencePolicy()
	if excluded := request.GetStringSlice("excluded_statuses", nil); excluded != nil {
		policy.ExcludedStatuses = excluded
	}
	policy.ApplyToStructural = request.GetBool("apply_confidence_to_structural", true)

	req := FrequencyRequest{
		StudyID:  studyID,
		Genes:    request.GetStringSlice("genes", nil),
		Category: category,
		Policy:   policy,
		TopN:     request.GetInt("limit", defaultTopN),
	}

	results, err := s.calculator.Compute(ctx, req)
	if err != nil {
		// ErrInvalidStudy and ErrEmptyGeneSet abort the whole request;
		// per-gene undefined frequencies come back inline in the results.
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"study_id":    studyID,
		"category":    string(category),
		"frequencies": results,
		"count":       len(results),
	})
}

// handleGetMutationCounts returns the single-gene rollup.
func (s *CBioPortalServer) handleGetMutationCounts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	studyID, err := request.RequireString("study_id")
	if err != nil || studyID == "" {
		return mcp.NewToolResultError("study_id is required"), nil
	}
	gene, err := request.RequireString("gene")
	if err != nil || gene == "" {
		return mcp.NewToolResultError("gene is required"), nil
	}

	counts, err := s.calculator.MutationCountsForGene(ctx, studyID, gene)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"study_id": studyID,
		"counts":   counts,
	})
}

// handleGetGeneMutations fetches event-level mutation rows for a gene.
func (s *CBioPortalServer) handleGetGeneMutations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gene, err := request.RequireString("gene")
	if err != nil || gene == "" {
		return mcp.NewToolResultError("gene is required"), nil
	}
	studyIDs := request.GetStringSlice("study_ids", nil)

	query, args := geneMutationsQuery(gene, studyIDs)
	rows, err := s.runAudited(ctx, "get_gene_mutations", query, args...)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"gene":      gene,
		"mutations": rows,
		"count":     len(rows),
	})
}

// handleGetMutationCountsByType groups mutation events by type.
func (s *CBioPortalServer) handleGetMutationCountsByType(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	genes := request.GetStringSlice("genes", nil)

	query, args := mutationCountsByTypeQuery(genes)
	rows, err := s.runAudited(ctx, "get_mutation_counts_by_type", query, args...)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"counts": rows,
		"count":  len(rows),
	})
}

// handleGetCNACounts counts copy-number alterations per gene and direction.
func (s *CBioPortalServer) handleGetCNACounts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	genes := request.GetStringSlice("genes", nil)

	query, args := cnaCountsQuery(genes)
	rows, err := s.runAudited(ctx, "get_cna_counts", query, args...)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"counts": rows,
		"count":  len(rows),
	})
}

// handleGetTopMutatedGenes lists the most mutated genes.
func (s *CBioPortalServer) handleGetTopMutatedGenes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	studyIDs := request.GetStringSlice("study_ids", nil)
	limit := request.GetInt("limit", defaultTopN)
	if limit < 1 {
		limit = 1
	} else if limit > 500 {
		limit = 500
	}

	query, args := topMutatedGenesQuery(studyIDs, limit)
	rows, err := s.runAudited(ctx, "get_top_mutated_genes", query, args...)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"genes": rows,
		"count": len(rows),
	})
}

// handleGetMolecularProfileSampleCounts counts samples per profile.
func (s *CBioPortalServer) handleGetMolecularProfileSampleCounts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, err := s.runAudited(ctx, "get_molecular_profile_sample_counts", molecularProfileSampleCountsQuery())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"profiles": rows,
		"count":    len(rows),
	})
}

// handleGetQueryLog returns recent audit entries.
func (s *CBioPortalServer) handleGetQueryLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 50)

	entries, err := s.audit.Recent(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// jsonResult marshals a payload into a text tool result.
func jsonResult(payload map[string]interface{}) (*mcp.CallToolResult, error) {
	resultJSON, err := json.Marshal(payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultJSON)), nil
}
