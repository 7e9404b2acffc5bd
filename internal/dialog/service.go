package dialog

import "strings"

// RouteService finds the best route for an inbound utterance.
type RouteService struct {
	table *RouteTable
}

func NewRouteService(table *RouteTable) *RouteService {
	return &RouteService{table: table}
}

// Table exposes the underlying route table.
func (s *RouteService) Table() *RouteTable { return s.table }

// RegisteredDialogs returns every resolved dialog instance in table order.
func (s *RouteService) RegisteredDialogs() []Dialog {
	dialogs := make([]Dialog, 0, len(s.table.routes))
	for _, route := range s.table.routes {
		dialogs = append(dialogs, route.dialog)
	}
	return dialogs
}

// FindBestMatch scans the table in priority order. Regex routes match
// first-come by Order: once a matched regex route sees a second matching
// route with a strictly higher Order, the scan stops and the first one wins.
// Two matching regex routes with equal Order are an authoring conflict and
// resolve to the disambiguation route, carrying both originals as payload.
// A regex match always beats a literal match; literal routes keep the
// highest fuzzy score seen. Returns nil when nothing matched.
func (s *RouteService) FindBestMatch(text string) *Route {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	var regexMatch *Route
	var literalMatch *Route
	literalScore := 0.0

	for index := range s.table.routes {
		route := s.table.routes[index]

		if route.Pattern != nil {
			subject := trimmed
			if route.IgnoreNonAlphanumeric {
				subject = strings.TrimSpace(nonAlphanumeric.ReplaceAllString(subject, ""))
			}
			if !route.Pattern.MatchString(subject) {
				continue
			}
			switch {
			case regexMatch == nil:
				regexMatch = &route
			case regexMatch.Order < route.Order:
				return regexMatch
			case regexMatch.Order == route.Order:
				return s.ambiguousRoute(*regexMatch, route)
			default:
				regexMatch = &route
			}
			continue
		}

		if len(route.Commands) == 0 {
			continue
		}
		score, ok := BestScore(trimmed, route.Commands, route.matchOptions())
		if !ok {
			continue
		}
		if literalMatch == nil || score > literalScore {
			matched := route
			literalMatch = &matched
			literalScore = score
		}
	}

	if regexMatch != nil {
		return regexMatch
	}
	return literalMatch
}

func (s *RouteService) ambiguousRoute(first, second Route) *Route {
	ambiguous, ok := s.table.Lookup(DialogAmbiguous)
	if !ok {
		return nil
	}
	ambiguous.Options = []Route{first, second}
	return &ambiguous
}
