// Package templates renders the dashboard page shell. Report sections are
// filled in afterwards over SSE.
package templates

//go:generate templ generate

import "fmt"

// DashboardPage is the data the page shell needs.
type DashboardPage struct {
	Title        string
	Stores       []int
	Depts        []int
	TopN         int
	DefaultStore int
	DefaultDept  int
}

func (p DashboardPage) title() string {
	if p.Title == "" {
		return "Sales Forecasting Dashboard"
	}
	return p.Title
}

func topHeading(n int) string {
	return fmt.Sprintf("Top %d Most Accurate Forecasts", n)
}
