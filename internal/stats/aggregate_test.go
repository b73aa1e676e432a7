package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dharsanguruparan/jansevak/internal/model"
)

func TestAggregate(t *testing.T) {
	complaints := []model.Complaint{
		{ID: "1", Status: model.StatusPending},
		{ID: "2", Status: model.StatusResolved},
		{ID: "3", Status: model.StatusPending},
		{ID: "4", Status: model.StatusInProgress},
		{ID: "5", Status: model.StatusPending},
	}
	got := Aggregate(complaints)
	assert.Equal(t, Counts{
		model.StatusPending:    3,
		model.StatusInProgress: 1,
		model.StatusResolved:   1,
	}, got)
	assert.Equal(t, len(complaints), got.Total())
}

func TestAggregateOmitsEmptyStatuses(t *testing.T) {
	got := Aggregate([]model.Complaint{{ID: "1", Status: model.StatusResolved}})
	assert.Len(t, got, 1)
	_, present := got[model.StatusPending]
	assert.False(t, present)
	assert.Equal(t, 0, got.Get(model.StatusPending))
	assert.Equal(t, 1, got.Get(model.StatusResolved))
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 0, got.Total())
}

func TestAggregateTotalMatchesInput(t *testing.T) {
	var complaints []model.Complaint
	for i := 0; i < 97; i++ {
		complaints = append(complaints, model.Complaint{Status: model.Statuses[i%len(model.Statuses)]})
	}
	assert.Equal(t, 97, Aggregate(complaints).Total())
}
