package production

import (
	"strings"
	"time"
)

// Categories whose route includes steaming.
var steamedCategories = map[string]bool{
	"root":  true,
	"tuber": true,
}

// RequiresSteaming reports whether materials of the category are steamed.
func RequiresSteaming(category string) bool {
	return steamedCategories[strings.ToLower(strings.TrimSpace(category))]
}

// Route returns the canonical process order for a material:
// washing -> steaming (root/tuber only) -> drying -> cutting -> packaging.
func Route(m Material) []ProcessType {
	route := []ProcessType{ProcessWashing}
	if RequiresSteaming(m.Category) {
		route = append(route, ProcessSteaming)
	}
	return append(route, ProcessDrying, ProcessCutting, ProcessPackaging)
}

// Base stage durations used by the built-in planner.
var baseDurations = map[ProcessType]time.Duration{
	ProcessWashing:   2 * time.Hour,
	ProcessSteaming:  4 * time.Hour,
	ProcessDrying:    6 * time.Hour,
	ProcessCutting:   2 * time.Hour,
	ProcessPackaging: 1 * time.Hour,
	ProcessCleaning:  1 * time.Hour,
}

// BaseDuration returns the reference duration of a stage before any
// moisture adjustment.
func BaseDuration(p ProcessType) time.Duration {
	return baseDurations[p]
}
