package estimation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasurementsAddAndGet(t *testing.T) {
	t.Parallel()

	ms := NewMeasurements()
	a, _ := newStubChannel("gps")
	b, _ := newStubChannel("baro")

	require.NoError(t, ms.Add(a))
	require.NoError(t, ms.Add(b))

	assert.Equal(t, 2, ms.Len())
	assert.Same(t, Measurement(a), ms.Get("gps"))
	assert.Same(t, Measurement(b), ms.Get("baro"))
	assert.Nil(t, ms.Get("mag"))
}

func TestMeasurementsRejectsDuplicates(t *testing.T) {
	t.Parallel()

	ms := NewMeasurements()
	a, _ := newStubChannel("gps")
	dup, _ := newStubChannel("gps")

	require.NoError(t, ms.Add(a))
	err := ms.Add(dup)
	require.ErrorIs(t, err, ErrDuplicateName)

	// the original registration survives
	assert.Equal(t, 1, ms.Len())
	assert.Same(t, Measurement(a), ms.Get("gps"))
}

func TestMeasurementsRejectsEmptyName(t *testing.T) {
	t.Parallel()

	ms := NewMeasurements()
	c, _ := newStubChannel("")
	require.Error(t, ms.Add(c))
	assert.Zero(t, ms.Len())
}

func TestMeasurementsPreservesInsertionOrder(t *testing.T) {
	t.Parallel()

	ms := NewMeasurements()
	names := []string{"gps", "baro", "mag", "odom"}
	for _, name := range names {
		c, _ := newStubChannel(name)
		require.NoError(t, ms.Add(c))
	}

	assert.Equal(t, names, ms.Names())
	for i, m := range ms.All() {
		assert.Equal(t, names[i], m.Name())
	}
}
