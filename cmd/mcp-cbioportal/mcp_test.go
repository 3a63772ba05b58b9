package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

// newTestCallToolRequest creates a test CallToolRequest with the given arguments
func newTestCallToolRequest(name string, arguments map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: arguments,
		},
	}
}

// resultText unwraps the text payload of a tool result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	textContent, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return textContent.Text
}

// resultJSON unwraps and parses the JSON payload of a successful tool result.
func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %s", resultText(t, result))
	}
	var response map[string]interface{}
	if err := json.Unmarshal([]byte(resultText(t, result)), &response); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}
	return response
}

func newTestServer(runner SelectRunner) *CBioPortalServer {
	return NewCBioPortalServer(runner, NewFrequencyCalculator(&fakeFrequencyStore{}), nil)
}

func TestHandleRunSelectQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("valid query", func(t *testing.T) {
		runner := &recordingRunner{rows: []map[string]interface{}{{"one": int64(1)}}}
		s := newTestServer(runner)

		request := newTestCallToolRequest("clickhouse_run_select_query", map[string]interface{}{
			"query": "SELECT 1 AS one",
		})
		result, err := s.handleRunSelectQuery(ctx, request)
		if err != nil {
			t.Fatalf("handleRunSelectQuery() error = %v", err)
		}

		response := resultJSON(t, result)
		if response["row_count"].(float64) != 1 {
			t.Errorf("expected row_count 1, got %v", response["row_count"])
		}
		if !strings.Contains(runner.queries[0], "LIMIT 1000") {
			t.Errorf("default limit was not appended: %q", runner.queries[0])
		}
	})

	t.Run("existing limit is preserved", func(t *testing.T) {
		runner := &recordingRunner{}
		s := newTestServer(runner)

		request := newTestCallToolRequest("clickhouse_run_select_query", map[string]interface{}{
			"query": "SELECT 1 LIMIT 5",
		})
		if _, err := s.handleRunSelectQuery(ctx, request); err != nil {
			t.Fatalf("handleRunSelectQuery() error = %v", err)
		}
		if strings.Count(strings.ToUpper(runner.queries[0]), "LIMIT") != 1 {
			t.Errorf("limit appended twice: %q", runner.queries[0])
		}
	})

	t.Run("custom limit is clamped", func(t *testing.T) {
		runner := &recordingRunner{}
		s := newTestServer(runner)

		request := newTestCallToolRequest("clickhouse_run_select_query", map[string]interface{}{
			"query": "SELECT 1",
			"limit": float64(999999),
		})
		if _, err := s.handleRunSelectQuery(ctx, request); err != nil {
			t.Fatalf("handleRunSelectQuery() error = %v", err)
		}
		if !strings.Contains(runner.queries[0], "LIMIT 10000") {
			t.Errorf("limit was not clamped: %q", runner.queries[0])
		}
	})

	t.Run("write statements are rejected before execution", func(t *testing.T) {
		runner := &recordingRunner{}
		s := newTestServer(runner)

		request := newTestCallToolRequest("clickhouse_run_select_query", map[string]interface{}{
			"query": "DROP TABLE cancer_study",
		})
		result, err := s.handleRunSelectQuery(ctx, request)
		if err != nil {
			t.Fatalf("handleRunSelectQuery() error = %v", err)
		}
		if !result.IsError {
			t.Error("expected an error result for a DROP statement")
		}
		if len(runner.queries) != 0 {
			t.Error("rejected query must never reach the database")
		}
	})

	t.Run("missing query", func(t *testing.T) {
		s := newTestServer(&recordingRunner{})
		request := newTestCallToolRequest("clickhouse_run_select_query", map[string]interface{}{})
		result, err := s.handleRunSelectQuery(ctx, request)
		if err != nil {
			t.Fatalf("handleRunSelectQuery() error = %v", err)
		}
		if !result.IsError {
			t.Error("expected an error result for a missing query")
		}
	})
}

func TestHandleListTableColumns(t *testing.T) {
	ctx := context.Background()

	t.Run("table bound as parameter", func(t *testing.T) {
		runner := &recordingRunner{rows: []map[string]interface{}{
			{"name": "cancer_study_identifier", "type": "String"},
		}}
		s := newTestServer(runner)

		request := newTestCallToolRequest("clickhouse_list_table_columns", map[string]interface{}{
			"table": "cancer_study",
		})
		result, err := s.handleListTableColumns(ctx, request)
		if err != nil {
			t.Fatalf("handleListTableColumns() error = %v", err)
		}

		response := resultJSON(t, result)
		if response["table"] != "cancer_study" {
			t.Errorf("unexpected table in response: %v", response["table"])
		}
		if !containsArg(runner.args[0], "cancer_study") {
			t.Errorf("table name must be bound, got args %v", runner.args[0])
		}
		if strings.Contains(runner.queries[0], "cancer_study") {
			t.Errorf("table name must not be spliced into SQL: %q", runner.queries[0])
		}
	})

	t.Run("table name with quote is rejected", func(t *testing.T) {
		runner := &recordingRunner{}
		s := newTestServer(runner)

		request := newTestCallToolRequest("clickhouse_list_table_columns", map[string]interface{}{
			"table": "t'; DROP TABLE x; --",
		})
		result, err := s.handleListTableColumns(ctx, request)
		if err != nil {
			t.Fatalf("handleListTableColumns() error = %v", err)
		}
		if !result.IsError {
			t.Error("expected an error result for an invalid table name")
		}
		if len(runner.queries) != 0 {
			t.Error("invalid table name must never reach the database")
		}
	})
}

func TestHandleGetCancerStudies(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid sort field is rejected", func(t *testing.T) {
		s := newTestServer(&recordingRunner{})
		request := newTestCallToolRequest("get_cancer_studies", map[string]interface{}{
			"sort_field": "evil; DROP",
		})
		result, err := s.handleGetCancerStudies(ctx, request)
		if err != nil {
			t.Fatalf("handleGetCancerStudies() error = %v", err)
		}
		if !result.IsError {
			t.Error("expected an error result for an invalid sort field")
		}
	})

	t.Run("keyword search binds patterns", func(t *testing.T) {
		runner := &recordingRunner{rows: []map[string]interface{}{
			{"cancer_study_identifier": "msk_impact_2017"},
		}}
		s := newTestServer(runner)

		request := newTestCallToolRequest("get_cancer_studies", map[string]interface{}{
			"keyword": "breast",
		})
		result, err := s.handleGetCancerStudies(ctx, request)
		if err != nil {
			t.Fatalf("handleGetCancerStudies() error = %v", err)
		}

		response := resultJSON(t, result)
		if response["count"].(float64) != 1 {
			t.Errorf("expected count 1, got %v", response["count"])
		}
		if !containsArg(runner.args[0], "%breast%") {
			t.Errorf("keyword must be bound as a LIKE pattern, got %v", runner.args[0])
		}
	})
}

func TestHandleGetStudyOverview(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown study", func(t *testing.T) {
		s := newTestServer(&recordingRunner{})
		request := newTestCallToolRequest("get_study_overview", map[string]interface{}{
			"study_id": "no_such_study",
		})
		result, err := s.handleGetStudyOverview(ctx, request)
		if err != nil {
			t.Fatalf("handleGetStudyOverview() error = %v", err)
		}
		if !result.IsError {
			t.Error("expected an error result for an unknown study")
		}
		if !strings.Contains(resultText(t, result), "no_such_study") {
			t.Errorf("error should name the study: %s", resultText(t, result))
		}
	})
}

func TestHandleGetClinicalData(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid data type", func(t *testing.T) {
		s := newTestServer(&recordingRunner{})
		request := newTestCallToolRequest("get_clinical_data", map[string]interface{}{
			"attribute_name": "OS_STATUS",
			"data_type":      "cohort",
		})
		result, err := s.handleGetClinicalData(ctx, request)
		if err != nil {
			t.Fatalf("handleGetClinicalData() error = %v", err)
		}
		if !result.IsError {
			t.Error("expected an error result for an invalid data type")
		}
	})

	t.Run("patient level", func(t *testing.T) {
		runner := &recordingRunner{rows: []map[string]interface{}{
			{"patient_unique_id": "p1", "attribute_value": "DECEASED"},
		}}
		s := newTestServer(runner)

		request := newTestCallToolRequest("get_clinical_data", map[string]interface{}{
			"attribute_name": "OS_STATUS",
			"data_type":      "patient",
		})
		result, err := s.handleGetClinicalData(ctx, request)
		if err != nil {
			t.Fatalf("handleGetClinicalData() error = %v", err)
		}

		response := resultJSON(t, result)
		if response["data_type"] != "patient" {
			t.Errorf("unexpected data_type: %v", response["data_type"])
		}
		if !strings.Contains(runner.queries[0], "patient_unique_id") {
			t.Errorf("patient query should select patient ids: %q", runner.queries[0])
		}
	})
}

func TestHandleGetAlterationFrequencies(t *testing.T) {
	ctx := context.Background()

	newServer := func() *CBioPortalServer {
		store := &fakeFrequencyStore{
			studies: map[string]bool{"msk_impact_2017": true},
			altered: []alteredRow{{Gene: "TP53", AlteredCount: 10, EventCount: 11}},
			profiled: []profiledRow{
				{Gene: "TP53", ProfiledCount: 100},
				{Gene: "CDKN2A", ProfiledCount: 50},
			},
		}
		return NewCBioPortalServer(&recordingRunner{}, NewFrequencyCalculator(store), nil)
	}

	t.Run("explicit genes", func(t *testing.T) {
		s := newServer()
		request := newTestCallToolRequest("get_alteration_frequencies", map[string]interface{}{
			"study_id": "msk_impact_2017",
			"genes":    []interface{}{"TP53", "CDKN2A"},
		})
		result, err := s.handleGetAlterationFrequencies(ctx, request)
		if err != nil {
			t.Fatalf("handleGetAlterationFrequencies() error = %v", err)
		}

		response := resultJSON(t, result)
		frequencies, ok := response["frequencies"].([]interface{})
		if !ok {
			t.Fatal("frequencies is not an array")
		}
		if len(frequencies) != 2 {
			t.Fatalf("expected 2 frequencies, got %d", len(frequencies))
		}

		first := frequencies[0].(map[string]interface{})
		if first["gene"] != "TP53" {
			t.Errorf("expected TP53 first, got %v", first["gene"])
		}
		if first["percentage"].(float64) != 10.0 {
			t.Errorf("expected 10.0, got %v", first["percentage"])
		}
	})

	t.Run("invalid study aborts", func(t *testing.T) {
		s := newServer()
		request := newTestCallToolRequest("get_alteration_frequencies", map[string]interface{}{
			"study_id": "bogus",
		})
		result, err := s.handleGetAlterationFrequencies(ctx, request)
		if err != nil {
			t.Fatalf("handleGetAlterationFrequencies() error = %v", err)
		}
		if !result.IsError {
			t.Error("expected an error result for an invalid study")
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		s := newServer()
		request := newTestCallToolRequest("get_alteration_frequencies", map[string]interface{}{
			"study_id": "msk_impact_2017",
			"category": "proteomic",
		})
		result, err := s.handleGetAlterationFrequencies(ctx, request)
		if err != nil {
			t.Fatalf("handleGetAlterationFrequencies() error = %v", err)
		}
		if !result.IsError {
			t.Error("expected an error result for an unknown category")
		}
	})

	t.Run("genes without coverage abort", func(t *testing.T) {
		s := newServer()
		request := newTestCallToolRequest("get_alteration_frequencies", map[string]interface{}{
			"study_id": "msk_impact_2017",
			"genes":    []interface{}{"NOT_A_GENE"},
		})
		result, err := s.handleGetAlterationFrequencies(ctx, request)
		if err != nil {
			t.Fatalf("handleGetAlterationFrequencies() error = %v", err)
		}
		if !result.IsError {
			t.Error("expected an error result for genes with no coverage")
		}
	})
}

func TestHandleGetMutationCounts(t *testing.T) {
	ctx := context.Background()
	store := &fakeFrequencyStore{
		studies:  map[string]bool{"s": true},
		altered:  []alteredRow{{Gene: "KRAS", AlteredCount: 4, EventCount: 4}},
		profiled: []profiledRow{{Gene: "KRAS", ProfiledCount: 10}},
	}
	s := NewCBioPortalServer(&recordingRunner{}, NewFrequencyCalculator(store), nil)

	request := newTestCallToolRequest("get_mutation_counts", map[string]interface{}{
		"study_id": "s",
		"gene":     "KRAS",
	})
	result, err := s.handleGetMutationCounts(ctx, request)
	if err != nil {
		t.Fatalf("handleGetMutationCounts() error = %v", err)
	}

	response := resultJSON(t, result)
	counts := response["counts"].(map[string]interface{})
	if counts["mutated_count"].(float64) != 4 {
		t.Errorf("expected mutated_count 4, got %v", counts["mutated_count"])
	}
	if counts["not_mutated_count"].(float64) != 6 {
		t.Errorf("expected not_mutated_count 6, got %v", counts["not_mutated_count"])
	}
}

func TestHandleGetQueryLog(t *testing.T) {
	ctx := context.Background()

	t.Run("auditing disabled", func(t *testing.T) {
		s := newTestServer(&recordingRunner{})
		request := newTestCallToolRequest("get_query_log", map[string]interface{}{})
		result, err := s.handleGetQueryLog(ctx, request)
		if err != nil {
			t.Fatalf("handleGetQueryLog() error = %v", err)
		}
		if !result.IsError {
			t.Error("expected an error result when auditing is disabled")
		}
	})

	t.Run("entries recorded through handlers", func(t *testing.T) {
		audit := newTestAuditStore(t)
		runner := &recordingRunner{rows: []map[string]interface{}{{"name": "t"}}}
		s := NewCBioPortalServer(runner, NewFrequencyCalculator(&fakeFrequencyStore{}), audit)

		listRequest := newTestCallToolRequest("clickhouse_list_tables", map[string]interface{}{})
		if _, err := s.handleListTables(ctx, listRequest); err != nil {
			t.Fatalf("handleListTables() error = %v", err)
		}

		request := newTestCallToolRequest("get_query_log", map[string]interface{}{})
		result, err := s.handleGetQueryLog(ctx, request)
		if err != nil {
			t.Fatalf("handleGetQueryLog() error = %v", err)
		}

		response := resultJSON(t, result)
		entries := response["entries"].([]interface{})
		if len(entries) != 1 {
			t.Fatalf("expected 1 audit entry, got %d", len(entries))
		}
		entry := entries[0].(map[string]interface{})
		if entry["tool"] != "clickhouse_list_tables" {
			t.Errorf("unexpected tool in audit entry: %v", entry["tool"])
		}
	})
}
