package slam

import (
	"sort"

	"github.com/milosgajdos/go-slam/pose"
)

// FeatureMap is an ordered map from feature ids to world-frame
// positions. Estimators rebuild it lazily from their internal state.
type FeatureMap struct {
	ids []FeatureID
	pts []pose.Point
}

// Len returns the number of features.
func (m *FeatureMap) Len() int {
	return len(m.ids)
}

// Get returns the position of the feature id.
func (m *FeatureMap) Get(id FeatureID) (pose.Point, bool) {
	i := sort.Search(len(m.ids), func(i int) bool { return m.ids[i] >= id })
	if i < len(m.ids) && m.ids[i] == id {
		return m.pts[i], true
	}
	return pose.Point{}, false
}

// Set inserts or replaces the position of the feature id.
func (m *FeatureMap) Set(id FeatureID, pt pose.Point) {
	i := sort.Search(len(m.ids), func(i int) bool { return m.ids[i] >= id })
	if i < len(m.ids) && m.ids[i] == id {
		m.pts[i] = pt
		return
	}
	m.ids = append(m.ids, 0)
	m.pts = append(m.pts, pose.Point{})
	copy(m.ids[i+1:], m.ids[i:])
	copy(m.pts[i+1:], m.pts[i:])
	m.ids[i] = id
	m.pts[i] = pt
}

// Each visits all features in ascending id order.
func (m *FeatureMap) Each(visit func(FeatureID, pose.Point)) {
	for i, id := range m.ids {
		visit(id, m.pts[i])
	}
}

// Clear removes all entries.
func (m *FeatureMap) Clear() {
	m.ids = m.ids[:0]
	m.pts = m.pts[:0]
}
