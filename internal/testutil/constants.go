// Package testutil provides common constants and utilities for tests
package testutil

import "time"

const (
	// TestTimeout is the default timeout for test operations
	TestTimeout = 30 * time.Second

	// ShortTestTimeout is a shorter timeout for quick operations
	ShortTestTimeout = 5 * time.Second

	// TestTable is the table fixtures are loaded into
	TestTable = "sample_table"

	// TestProjectID and friends describe the default fixture row
	TestProjectID      = "PRJ-0001"
	TestProjectName    = "Project A"
	TestProjectManager = "Priya Natarajan"
	TestResourceID     = "HY_RR_01"
	TestResourceName   = "Ramyashree Raghavarapu"
	TestResourceRate   = "55"
	TestPostedHours    = "8"
	TestActualDate     = "2025-11-03"
	TestPostedDate     = "2025-11-05"
	TestPeriod         = "2025-11"
)
