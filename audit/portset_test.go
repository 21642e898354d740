package audit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmptyAllowList(t *testing.T) {
	set, err := ParseAllowList("")
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestParseAllowListSortsAndDeduplicates(t *testing.T) {
	set, err := ParseAllowList("500,21,23,80,3333,21")
	require.NoError(t, err)
	assert.Equal(t, PortSet{21, 23, 80, 500, 3333}, set)
}

func TestParseAllowListTrimsWhitespace(t *testing.T) {
	set, err := ParseAllowList(" 443, 22 ")
	require.NoError(t, err)
	assert.Equal(t, PortSet{22, 443}, set)
}

func TestParseMalformedAllowList(t *testing.T) {
	for _, raw := range []string{"21,,80", "21,abc", ",", "80,", "22;80", "99999999999999999999", "70000", "-1"} {
		t.Run(raw, func(t *testing.T) {
			set, err := ParseAllowList(raw)
			require.Error(t, err)
			assert.Nil(t, set)

			var configErr *ConfigError
			require.True(t, errors.As(err, &configErr))
			assert.Equal(t, MessageBadAllowList, configErr.Message)
		})
	}
}

func TestParseAllowListRoundTrip(t *testing.T) {
	for _, raw := range []string{"0", "80", "3333,500,21", "65535,1,1,2", " 8080 , 22"} {
		first, err := ParseAllowList(raw)
		require.NoError(t, err)

		second, err := ParseAllowList(first.String())
		require.NoError(t, err)

		assert.Equal(t, first, second, raw)
	}
}

func TestPortSetDifference(t *testing.T) {
	a := NewPortSet(80, 21, 443)
	b := NewPortSet(443, 8080)

	assert.Equal(t, PortSet{21, 80}, a.Difference(b))
	assert.Equal(t, PortSet{8080}, b.Difference(a))
	assert.Equal(t, PortSet{}, a.Difference(a))
	assert.True(t, a.Contains(443))
	assert.False(t, a.Contains(22))
}
