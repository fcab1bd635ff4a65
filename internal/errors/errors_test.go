package errors_test

import (
	"testing"

	apperrors "github.com/jrsteele09/micromanager/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf(t *testing.T) {
	require.NoError(t, apperrors.Wrapf(nil, "ignored"))

	err := apperrors.Wrapf(apperrors.ErrServiceNotFound, "start %s", "billing")
	require.EqualError(t, err, "start billing: microservice not found")
	require.True(t, apperrors.Is(err, apperrors.ErrServiceNotFound))
	require.False(t, apperrors.Is(err, apperrors.ErrNotFound))
}
