package slam

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/milosgajdos/go-slam/pose"
)

func TestFeatureMap(t *testing.T) {
	assert := assert.New(t)

	m := &FeatureMap{}
	assert.Equal(0, m.Len())

	m.Set(5, pose.Point{X: 1})
	m.Set(1, pose.Point{X: 2})
	m.Set(3, pose.Point{X: 3})
	m.Set(5, pose.Point{X: 4})

	assert.Equal(3, m.Len())

	pt, ok := m.Get(5)
	assert.True(ok)
	assert.InDelta(4.0, pt.X, 1e-12)

	_, ok = m.Get(2)
	assert.False(ok)

	var order []FeatureID
	m.Each(func(id FeatureID, _ pose.Point) { order = append(order, id) })
	assert.Equal([]FeatureID{1, 3, 5}, order)

	m.Clear()
	assert.Equal(0, m.Len())
}
