package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetServiceErrorUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("create poll: %w", Validation("title is required"))
	svcErr := GetServiceError(wrapped)
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.HTTPStatus)
	assert.Equal(t, "title is required", svcErr.Message)
}

func TestGetServiceErrorTranslatesStoreErrors(t *testing.T) {
	notFound := GetServiceError(fmt.Errorf("get unit: %w", sql.ErrNoRows))
	require.NotNil(t, notFound)
	assert.Equal(t, http.StatusNotFound, notFound.HTTPStatus)

	dup := GetServiceError(&pq.Error{Code: "23505"})
	require.NotNil(t, dup)
	assert.Equal(t, http.StatusConflict, dup.HTTPStatus)

	assert.Nil(t, GetServiceError(fmt.Errorf("boom")))
}

func TestFromStore(t *testing.T) {
	err := FromStore(sql.ErrNoRows, "poll not found")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "poll not found", err.Error())

	other := fmt.Errorf("connection reset")
	assert.Equal(t, other, FromStore(other, "ignored"))
	assert.NoError(t, FromStore(nil, "ignored"))
}

func TestRateLimitDetails(t *testing.T) {
	err := RateLimitExceeded(5, "1s")
	assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatus)
	assert.Equal(t, 5, err.Details["limit"])
}
