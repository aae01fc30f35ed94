package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeAnalytics_ZeroTotals(t *testing.T) {
	a := ComputeAnalytics(nil)
	assert.Equal(t, Analytics{}, a)
	assert.Zero(t, a.SuccessRate)
	assert.Zero(t, a.ReplyRate)
	assert.Zero(t, a.InterviewRate)
}

func TestComputeAnalytics_Rates(t *testing.T) {
	a := ComputeAnalytics(map[DeliveryStatus]int64{
		DeliverySent:        6,
		DeliveryFailed:      2,
		DeliveryReplied:     1,
		DeliveryInterviewed: 1,
	})
	assert.EqualValues(t, 10, a.Total)
	assert.InDelta(t, 60.0, a.SuccessRate, 1e-9)
	assert.InDelta(t, 100.0/6, a.ReplyRate, 1e-9)
	assert.InDelta(t, 100.0/6, a.InterviewRate, 1e-9)
}

func TestComputeAnalytics_NoSentKeepsRatesAtZero(t *testing.T) {
	a := ComputeAnalytics(map[DeliveryStatus]int64{DeliveryFailed: 3})
	assert.EqualValues(t, 3, a.Total)
	assert.Zero(t, a.SuccessRate)
	assert.Zero(t, a.ReplyRate)
	assert.Zero(t, a.InterviewRate)
}

func TestDispatchResult_Classification(t *testing.T) {
	ok := Outcome{Email: "a@x.com", Status: OutcomeSuccess}
	bad := Outcome{Email: "b@x.com", Status: OutcomeFailed, Error: "boom"}

	r := &DispatchResult{Results: []Outcome{ok, ok}}
	assert.Equal(t, AllSuccess, r.Classification())

	r = &DispatchResult{Results: []Outcome{ok, bad, ok}}
	assert.Equal(t, Partial, r.Classification())
	assert.Equal(t, DispatchStats{Total: 3, Sent: 2, Failed: 1}, r.Stats())

	r = &DispatchResult{Results: []Outcome{bad, bad}}
	assert.Equal(t, AllFailure, r.Classification())
}

func TestDateRange_InclusiveBounds(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)
	r := DateRange{From: from, To: to}

	assert.True(t, r.Contains(from))
	assert.True(t, r.Contains(to))
	assert.False(t, r.Contains(from.Add(-time.Second)))
	assert.False(t, r.Contains(to.Add(time.Second)))
	assert.True(t, DateRange{}.Contains(time.Time{}))
}

func TestRecipient_MergeTags(t *testing.T) {
	r := &Recipient{Tags: []string{"a", "b"}}
	r.MergeTags([]string{"b", "c", "", "a", "d"})
	assert.Equal(t, []string{"a", "b", "c", "d"}, r.Tags)
}

func TestTemplate_RefreshVariables(t *testing.T) {
	tpl := &Template{Subject: "Hi {{name}}", Body: "{{company}} {{name}}"}
	tpl.RefreshVariables()
	assert.Equal(t, []string{"name", "company"}, tpl.Variables)

	tpl.Body = "nothing"
	tpl.RefreshVariables()
	assert.Equal(t, []string{"name"}, tpl.Variables)
}
