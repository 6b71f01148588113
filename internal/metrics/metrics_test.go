package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	ensure()

	before := testutil.ToFloat64(authAttempts.WithLabelValues("success"))
	ObserveAuth("success")
	assert.Equal(t, before+1, testutil.ToFloat64(authAttempts.WithLabelValues("success")))

	before = testutil.ToFloat64(approvalAttempts.WithLabelValues("not_participant"))
	ObserveApproval("not_participant")
	assert.Equal(t, before+1, testutil.ToFloat64(approvalAttempts.WithLabelValues("not_participant")))

	before = testutil.ToFloat64(proposalsCreated)
	ObserveProposalCreated()
	assert.Equal(t, before+1, testutil.ToFloat64(proposalsCreated))

	before = testutil.ToFloat64(proposalsFinished.WithLabelValues("approved"))
	ObserveProposalFinished("approved")
	assert.Equal(t, before+1, testutil.ToFloat64(proposalsFinished.WithLabelValues("approved")))
}
