package schema

import "fmt"

// Timesheet column names
const (
	ColProjectFinancialLocation  = "Project Financial Location"
	ColProjectID                 = "Project ID"
	ColProjectName               = "Project Name"
	ColProjectManager            = "Project Manager"
	ColResourceName              = "Resource Name"
	ColResourceID                = "Resource ID"
	ColResourceFinancialLocation = "Resource Financial Location"
	ColPostedHours               = "Posted Hours"
	ColProjectTaskName           = "Project Task Name"
	ColProjectTaskID             = "Project Task ID"
	ColActualDate                = "Actual Date"
	ColPostedDate                = "Posted Date"
	ColFinancialPeriod           = "Financial Period (Posted Date)"
	ColResourceFinancialDept     = "Resource Financial Department"
	ColProjectFinancialDept      = "Project Financial Department"
	ColProjectClass              = "Project Class"
	ColTimesheetWeekActual       = "Timesheet Week (Actual Date)"
	ColTimesheetWeekPosted       = "Timesheet Week (Posted Date)"
	ColResourceRate              = "Resource Rate"
	ColProjectRate               = "Project Rate"
	ColResourcePrimaryRole       = "Resource Primary Role"
	ColResourceProjectRole       = "Resource Project Role"
	ColResourceCurrency          = "Resource Currency"
)

// Timesheet returns the catalog of the timesheet export the tool is built around
func Timesheet() *Catalog {
	return MustCatalog([]Column{
		{ColProjectFinancialLocation, "VARCHAR"},
		{ColProjectID, "VARCHAR"},
		{ColProjectName, "VARCHAR"},
		{ColProjectManager, "VARCHAR"},
		{ColResourceName, "VARCHAR"},
		{ColResourceID, "VARCHAR"},
		{ColResourceFinancialLocation, "VARCHAR"},
		{ColPostedHours, "DOUBLE"},
		{ColProjectTaskName, "VARCHAR"},
		{ColProjectTaskID, "VARCHAR"},
		{ColActualDate, "DATE"},
		{ColPostedDate, "DATE"},
		{ColFinancialPeriod, "VARCHAR"},
		{ColResourceFinancialDept, "VARCHAR"},
		{ColProjectFinancialDept, "VARCHAR"},
		{ColProjectClass, "VARCHAR"},
		{ColTimesheetWeekActual, "VARCHAR"},
		{ColTimesheetWeekPosted, "VARCHAR"},
		{ColResourceRate, "DOUBLE"},
		{ColProjectRate, "VARCHAR"},
		{ColResourcePrimaryRole, "VARCHAR"},
		{ColResourceProjectRole, "VARCHAR"},
		{ColResourceCurrency, "VARCHAR"},
	})
}

// Roles names the columns the question rules read from and filter on
type Roles struct {
	ProjectID       string
	ProjectName     string
	ProjectManager  string
	ResourceID      string
	ResourceName    string
	PostedHours     string
	ActualDate      string
	PostedDate      string
	FinancialPeriod string
	ResourceRate    string
}

// TimesheetRoles maps every role onto the timesheet catalog
func TimesheetRoles() Roles {
	return Roles{
		ProjectID:       ColProjectID,
		ProjectName:     ColProjectName,
		ProjectManager:  ColProjectManager,
		ResourceID:      ColResourceID,
		ResourceName:    ColResourceName,
		PostedHours:     ColPostedHours,
		ActualDate:      ColActualDate,
		PostedDate:      ColPostedDate,
		FinancialPeriod: ColFinancialPeriod,
		ResourceRate:    ColResourceRate,
	}
}

func (r Roles) all() []struct{ role, column string } {
	return []struct{ role, column string }{
		{"project id", r.ProjectID},
		{"project name", r.ProjectName},
		{"project manager", r.ProjectManager},
		{"resource id", r.ResourceID},
		{"resource name", r.ResourceName},
		{"posted hours", r.PostedHours},
		{"actual date", r.ActualDate},
		{"posted date", r.PostedDate},
		{"financial period", r.FinancialPeriod},
		{"resource rate", r.ResourceRate},
	}
}

// Validate checks that every role column exists in the catalog
func (r Roles) Validate(c *Catalog) error {
	for _, entry := range r.all() {
		if !c.Has(entry.column) {
			return fmt.Errorf("catalog is missing the %s column %q", entry.role, entry.column)
		}
	}

	return nil
}
