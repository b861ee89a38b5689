package prometheus

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(negotiationCounter.WithLabelValues("PUBLISHER", "offer", StatusError))
	RecordNegotiationOp("PUBLISHER", "offer", errors.New("failed"))
	require.Equal(t, before+1, testutil.ToFloat64(negotiationCounter.WithLabelValues("PUBLISHER", "offer", StatusError)))

	RecordSubscriptionUpdate(StatusSuccess, 4)
	require.Equal(t, 4.0, testutil.ToFloat64(subscribedTracksGauge))
	RecordSubscriptionUpdate(StatusError, 7)
	require.Equal(t, 4.0, testutil.ToFloat64(subscribedTracksGauge))

	SetPublishedTransceivers(2)
	require.Equal(t, 2.0, testutil.ToFloat64(publishedTracksGauge))
}
