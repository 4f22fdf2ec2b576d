package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinitamart/storefront/internal/domain/apperr"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPlaced, StatusProcessing, true},
		{StatusPlaced, StatusShipped, true},
		{StatusProcessing, StatusDelivered, true},
		{StatusShipped, StatusDelivered, true},
		{StatusPlaced, StatusCancelled, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusProcessing, false},
		{StatusShipped, StatusPlaced, false},
		{StatusCancelled, StatusProcessing, false},
		{StatusDelivered, StatusDelivered, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := CheckTransition(tt.from, tt.to)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			var te *TransitionError
			require.ErrorAs(t, err, &te)
			assert.True(t, apperr.Is(err, apperr.KindConflict))
		})
	}
}

func TestCheckTransition_UnknownStatus(t *testing.T) {
	err := CheckTransition(StatusPlaced, Status("Lost"))
	var se *InvalidStatusError
	require.ErrorAs(t, err, &se)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestStatus_Predicates(t *testing.T) {
	for _, s := range Statuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("").Valid())
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusShipped.Terminal())
	assert.False(t, StatusShipped.Cancellable())
}

func TestFilter_Normalize(t *testing.T) {
	f := Filter{}.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, DefaultPageSize, f.PageSize)

	f = Filter{Page: 3, PageSize: 500}.Normalize()
	assert.Equal(t, MaxPageSize, f.PageSize)
	assert.Equal(t, 200, f.Offset())

	p := NewPage(nil, 21, Filter{Page: 1, PageSize: 10})
	assert.Equal(t, 3, p.Pages)
}
