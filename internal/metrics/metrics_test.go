package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSearchStarted(t *testing.T) {
	flat := testutil.ToFloat64(SearchJobs.WithLabelValues("flat"))
	recursive := testutil.ToFloat64(SearchJobs.WithLabelValues("recursive"))

	RecordSearchStarted(false)
	RecordSearchStarted(true)
	RecordSearchStarted(true)

	assert.Equal(t, flat+1, testutil.ToFloat64(SearchJobs.WithLabelValues("flat")))
	assert.Equal(t, recursive+2, testutil.ToFloat64(SearchJobs.WithLabelValues("recursive")))
}

func TestRegistryGauges(t *testing.T) {
	before := testutil.ToFloat64(registrySnapshots)
	RecordRegistrySnapshot(7)
	assert.Equal(t, before+1, testutil.ToFloat64(registrySnapshots))
	assert.Equal(t, float64(7), testutil.ToFloat64(registryApps))

	SetSelectionSize(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(selectionSize))
}
