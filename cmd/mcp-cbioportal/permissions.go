package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// forbiddenPrivileges are privileges the MCP ClickHouse user must NOT hold
// on *.*. The server is strictly read-only; holding any of these on startup
// is a deployment error.
var forbiddenPrivileges = []string{
	"INSERT",
	"ALTER",
	"CREATE",
	"DROP",
	"TRUNCATE",
	"OPTIMIZE",
	"ACCESS MANAGEMENT",
	"SYSTEM",
	"ALL",
}

// checkGrant runs CHECK GRANT <priv> ON <scope> and reports whether the
// current user holds the privilege. CHECK GRANT may return a row without
// column names, so the first value of the first row is what gets read.
func checkGrant(ctx context.Context, runner SelectRunner, priv, scope string) bool {
	scope = strings.TrimSpace(scope)
	if scope == "*" {
		scope = "*.*"
	}

	rows, err := runner.RunSelect(ctx, fmt.Sprintf("CHECK GRANT %s ON %s", priv, scope))
	if err != nil {
		fmt.Fprintf(os.Stderr, "CHECK GRANT %s ON %s failed (treating as not granted): %v\n", priv, scope, err)
		return false
	}
	if len(rows) == 0 {
		return false
	}

	for _, val := range rows[0] {
		switch v := val.(type) {
		case uint8:
			return v == 1
		case int64:
			return v == 1
		case uint64:
			return v == 1
		case string:
			n, err := strconv.Atoi(v)
			return err == nil && n == 1
		}
		// CHECK GRANT returns a single column; the first value decides.
		break
	}
	return false
}

// forbiddenPrivsPresent returns the forbidden privileges granted on *.*.
func forbiddenPrivsPresent(ctx context.Context, runner SelectRunner) []string {
	var bad []string
	for _, p := range forbiddenPrivileges {
		if checkGrant(ctx, runner, p, "*.*") {
			bad = append(bad, p)
		}
	}
	sort.Strings(bad)
	return bad
}

// ensureDBPermissions is the startup gate: the configured user must be able
// to SELECT from the application database and the system schema tables, and
// must hold no write/admin privileges anywhere. Failures abort startup with
// a remediation message.
func ensureDBPermissions(ctx context.Context, runner SelectRunner, cfg *McpConfig) error {
	user := cfg.User
	db := cfg.Database

	if !checkGrant(ctx, runner, "SELECT", db+".*") {
		return fmt.Errorf(
			"permission check failed: the MCP ClickHouse user lacks required privileges.\n"+
				"- Missing: SELECT ON %s.* for user %q.\n"+
				"Grant minimally:\n"+
				"  GRANT SELECT ON %s.* TO %s;",
			db, user, db, user)
	}

	if bad := forbiddenPrivsPresent(ctx, runner); len(bad) > 0 {
		return fmt.Errorf(
			"permission check failed: the MCP ClickHouse user has excessive privileges.\n"+
				"- Forbidden privileges detected on *.*: %s\n"+
				"The MCP ClickHouse user must be strictly read-only. Revoke these permissions, e.g.:\n"+
				"  REVOKE %s ON *.* FROM %s;",
			strings.Join(bad, ", "), strings.Join(bad, ", "), user)
	}

	var missingSystem []string
	for _, table := range []string{"system.tables", "system.columns"} {
		if !checkGrant(ctx, runner, "SELECT", table) {
			missingSystem = append(missingSystem, table)
		}
	}
	if len(missingSystem) > 0 {
		return fmt.Errorf(
			"permission check failed: the MCP ClickHouse user lacks system table access.\n"+
				"Schema discovery tools require the system schema tables.\n"+
				"- Missing SELECT on: %s\n"+
				"Grant these permissions, e.g.:\n"+
				"  GRANT SELECT ON %s TO %s;",
			strings.Join(missingSystem, ", "), strings.Join(missingSystem, ", "), user)
	}

	return nil
}
