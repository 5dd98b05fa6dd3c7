package bus

import "github.com/propelhq/propel/pkg/models"

// Filter selects events by type, source, and urgency. Dimensions combine
// with AND; values within a dimension with OR; an empty dimension matches
// everything. Live subscriptions and replay use identical matching.
type Filter struct {
	Types     []models.EventType
	Sources   []models.EventSource
	Urgencies []models.Urgency
}

// All returns a filter that matches every event.
func All() Filter { return Filter{} }

// Matches reports whether the event satisfies every non-empty dimension.
func (f Filter) Matches(event models.Event) bool {
	if len(f.Types) > 0 && !containsType(f.Types, event.Type) {
		return false
	}
	if len(f.Sources) > 0 && !containsSource(f.Sources, event.Source) {
		return false
	}
	if len(f.Urgencies) > 0 && !containsUrgency(f.Urgencies, event.Urgency) {
		return false
	}
	return true
}

func containsType(types []models.EventType, t models.EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func containsSource(sources []models.EventSource, s models.EventSource) bool {
	for _, candidate := range sources {
		if candidate.Kind == s.Kind && candidate.AgentID == s.AgentID {
			return true
		}
	}
	return false
}

func containsUrgency(urgencies []models.Urgency, u models.Urgency) bool {
	for _, candidate := range urgencies {
		if candidate == u {
			return true
		}
	}
	return false
}
