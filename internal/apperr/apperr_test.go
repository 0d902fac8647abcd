package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomy(t *testing.T) {
	assert.ErrorIs(t, Denied("not owner"), ErrDenied)
	assert.ErrorIs(t, Invalid("quantity", "must not be negative"), ErrValidation)
	assert.ErrorIs(t, Store("updating budget", errors.New("disk I/O error")), ErrStore)

	link := LinkCreation(errors.New("locked"))
	assert.ErrorIs(t, link, ErrLinkCreation)
	assert.ErrorIs(t, link, ErrStore)
	assert.NotErrorIs(t, link, ErrNotFound)
}

func TestStoreKeepsClassifiedErrors(t *testing.T) {
	err := Store("loading", fmt.Errorf("wrapped: %w", ErrNotFound))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrStore)

	assert.NoError(t, Store("noop", nil))
}

func TestValidationErrorField(t *testing.T) {
	err := fmt.Errorf("applying patch: %w", Invalid("items[2].quantity", "must not be negative"))

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "items[2].quantity", ve.Field)
}

func TestTimeoutIsStoreError(t *testing.T) {
	err := Store("listing", fmt.Errorf("query: %w", context.DeadlineExceeded))
	assert.True(t, IsTimeout(err))
	assert.ErrorIs(t, err, ErrStore)
}
