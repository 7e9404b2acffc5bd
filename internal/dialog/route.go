package dialog

import (
	"fmt"
	"regexp"
)

// Built-in route names. Every route table carries both.
const (
	DialogAmbiguous = "AmbiguousAction"
	DialogCancel    = "Cancel"
)

// CancelCommands are the literal commands the built-in cancel route matches,
// case-insensitively.
var CancelCommands = []string{"cancel", "back", "undo", "reset"}

// Route is one conversational entry point: a dialog plus the commands or
// pattern that select it.
type Route struct {
	// Dialog names the handler in the registry. Unique per table.
	Dialog string
	// Commands are literal candidates scored by the fuzzy matcher.
	Commands []string
	// Pattern, when set, makes this a regex route; Commands are ignored.
	Pattern *regexp.Regexp
	// Order breaks ties between matching regex routes; lower is more
	// specific.
	Order int

	CaseSensitive         bool
	IgnoreNonAlphanumeric bool
	// Threshold defaults to DefaultThreshold when zero.
	Threshold float64

	RequiresAuth bool
	PersonalOnly bool

	// Options is handed to the dialog's Begin call.
	Options any

	dialog Dialog
}

// Instance returns the dialog resolved for this route.
func (r Route) Instance() Dialog { return r.dialog }

func (r Route) matchOptions() MatchOptions {
	return MatchOptions{
		CaseSensitive:         r.CaseSensitive,
		IgnoreNonAlphanumeric: r.IgnoreNonAlphanumeric,
		Threshold:             r.Threshold,
	}
}

// RouteTable is the priority-ordered, immutable set of routes for one
// deployment. Built once; rebuilt rather than mutated when routes change.
type RouteTable struct {
	routes []Route
	byName map[string]Route
}

// NewRouteTable resolves every route through the registry and prepends the
// built-in disambiguation and cancel routes. It fails on the first route
// whose dialog cannot be resolved and on duplicate dialog names; both are
// configuration errors.
func NewRouteTable(registry Registry, routes ...Route) (*RouteTable, error) {
	table := &RouteTable{byName: make(map[string]Route)}

	all := append(builtinRoutes(), routes...)
	for _, route := range all {
		if _, exists := table.byName[route.Dialog]; exists {
			return nil, fmt.Errorf("duplicate route for dialog %q", route.Dialog)
		}
		if route.dialog == nil {
			construct, ok := registry[route.Dialog]
			if !ok || construct == nil {
				return nil, fmt.Errorf("no dialog registered for route %q", route.Dialog)
			}
			route.dialog = construct()
			if route.dialog == nil {
				return nil, fmt.Errorf("registry returned nil dialog for route %q", route.Dialog)
			}
		}
		table.byName[route.Dialog] = route
		table.routes = append(table.routes, route)
	}
	return table, nil
}

func builtinRoutes() []Route {
	return []Route{
		{Dialog: DialogAmbiguous, dialog: ambiguousDialog{}},
		{Dialog: DialogCancel, Commands: CancelCommands, dialog: cancelDialog{}},
	}
}

// Lookup returns the route registered for a dialog name.
func (t *RouteTable) Lookup(dialog string) (Route, bool) {
	route, ok := t.byName[dialog]
	return route, ok
}

// Routes returns the table in priority order.
func (t *RouteTable) Routes() []Route { return t.routes }
