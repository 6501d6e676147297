package archiver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewExclusionSet(t *testing.T) {
	set := NewExclusionSet([]string{" 104", "610 ", "", "104", "  "})

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []string{"104", "610"}, set.IDs())
	assert.True(t, set.Contains("104"))
	assert.True(t, set.Contains("610"))
	assert.False(t, set.Contains("201"))
	assert.Equal(t, "104, 610", set.String())
}

func TestExclusionSet_Nil(t *testing.T) {
	var set *ExclusionSet

	assert.False(t, set.Contains("104"))
	assert.Equal(t, 0, set.Len())
	assert.Nil(t, set.IDs())
	assert.Equal(t, "(none)", set.String())
}

func TestIsEligible(t *testing.T) {
	set := NewExclusionSet([]string{"104"})

	tests := []struct {
		name   string
		record Record
		want   bool
	}{
		{"excluded", Record{ID: "104"}, false},
		{"not excluded", Record{ID: "201"}, true},
		{"missing id", Record{ID: "", DisplayName: "Orphan"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEligible(tt.record, set))
		})
	}
}

func TestFirstEligible(t *testing.T) {
	records := []Record{{ID: "104"}, {ID: "201"}, {ID: "610"}, {ID: "305"}}
	operator := NewExclusionSet([]string{"104", "610"})
	virtual := NewExclusionSet([]string{"201"})

	got, ok := firstEligible(records, operator)
	assert.True(t, ok)
	assert.Equal(t, "201", got.ID)

	got, ok = firstEligible(records, operator, virtual)
	assert.True(t, ok)
	assert.Equal(t, "305", got.ID)

	_, ok = firstEligible(records, NewExclusionSet([]string{"104", "201", "610", "305"}))
	assert.False(t, ok)

	_, ok = firstEligible(nil, operator)
	assert.False(t, ok)
}
