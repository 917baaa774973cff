package aggregate

import (
	"sort"

	"github.com/headline-goat/intent-goat/internal/events"
)

// PathPoint is one scroll-depth sample.
type PathPoint struct {
	T     int64   `json:"x"`
	Depth float64 `json:"y"`
}

// SessionPath is the scroll trace of one session.
type SessionPath struct {
	SessionID string      `json:"sessionId"`
	Points    []PathPoint `json:"points"`
}

// SessionPaths extracts per-session scroll traces ordered by timestamp.
// Sessions are returned in first-seen order.
func SessionPaths(evs []events.Event) []SessionPath {
	index := make(map[string]int)
	var paths []SessionPath

	for _, e := range evs {
		if e.SessionID == "" {
			continue
		}
		i, ok := index[e.SessionID]
		if !ok {
			i = len(paths)
			index[e.SessionID] = i
			paths = append(paths, SessionPath{SessionID: e.SessionID, Points: []PathPoint{}})
		}
		if e.Type == events.TypeScrollDepth {
			paths[i].Points = append(paths[i].Points, PathPoint{T: e.Timestamp, Depth: e.DepthPercent})
		}
	}

	for i := range paths {
		pts := paths[i].Points
		sort.SliceStable(pts, func(a, b int) bool { return pts[a].T < pts[b].T })
	}
	return paths
}
