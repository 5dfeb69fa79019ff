package rest

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/notifications?read=false&archived=true&type=deadline&search=report&limit=20&offset=40", nil)

	filter, err := parseFilter(r)
	require.NoError(t, err)

	require.NotNil(t, filter.Read)
	assert.False(t, *filter.Read)
	require.NotNil(t, filter.Archived)
	assert.True(t, *filter.Archived)
	assert.Equal(t, "deadline", string(filter.Type))
	assert.Equal(t, "report", filter.Search)
	assert.Equal(t, 20, filter.Limit)
	assert.Equal(t, 40, filter.Offset)
}

func TestParseFilterDateRange(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/notifications?from=2026-03-01T00:00:00Z&to=2026-03-31T23:59:59Z", nil)

	filter, err := parseFilter(r)
	require.NoError(t, err)

	require.NotNil(t, filter.From)
	require.NotNil(t, filter.To)
	assert.Equal(t, time.March, filter.From.Month())
	assert.True(t, filter.To.After(*filter.From))
}

func TestParseFilterEmpty(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/notifications", nil)

	filter, err := parseFilter(r)
	require.NoError(t, err)

	assert.Nil(t, filter.Read)
	assert.Nil(t, filter.Archived)
	assert.Zero(t, filter.Limit)
}

func TestParseFilterInvalidValues(t *testing.T) {
	for _, query := range []string{
		"read=maybe",
		"from=yesterday",
		"limit=-1",
		"offset=abc",
	} {
		r := httptest.NewRequest("GET", "/api/v1/notifications?"+query, nil)
		_, err := parseFilter(r)
		assert.Error(t, err, query)
	}
}
