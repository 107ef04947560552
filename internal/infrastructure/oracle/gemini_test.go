package oracle

import (
	"errors"
	"testing"

	"github.com/promark/verify-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict_PlainObject(t *testing.T) {
	v, err := ParseVerdict(`{"handleMatches":true,"tokenMatches":true,"isRealPost":true,"extractedHandle":"@demo","reasoning":"all checks passed"}`)
	require.NoError(t, err)
	assert.True(t, v.Accepted())
	assert.Equal(t, "@demo", v.ExtractedHandle)
}

func TestParseVerdict_FencedObject(t *testing.T) {
	raw := "```json\n{\"handleMatches\":true,\"tokenMatches\":false,\"isRealPost\":true,\"extractedHandle\":\"@other\",\"reasoning\":\"token absent\"}\n```"
	v, err := ParseVerdict(raw)
	require.NoError(t, err)
	assert.False(t, v.Accepted())
	assert.False(t, v.TokenMatches)
	assert.Equal(t, "token absent", v.Reasoning)
}

func TestParseVerdict_IsRealPostMapsToIsAuthentic(t *testing.T) {
	v, err := ParseVerdict(`{"handleMatches":true,"tokenMatches":true,"isRealPost":false,"extractedHandle":"","reasoning":"looks edited"}`)
	require.NoError(t, err)
	assert.False(t, v.IsAuthentic)
	assert.False(t, v.Accepted())
}

func TestParseVerdict_MissingBooleanField_Malformed(t *testing.T) {
	_, err := ParseVerdict(`{"handleMatches":true,"tokenMatches":true,"extractedHandle":"@x","reasoning":""}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrOracleMalformed))
}

func TestParseVerdict_Garbage_Malformed(t *testing.T) {
	for _, raw := range []string{"", "the post looks fine to me", "[1,2,3]", "{not json}"} {
		_, err := ParseVerdict(raw)
		require.Error(t, err, "raw=%q", raw)
		assert.True(t, errors.Is(err, domain.ErrOracleMalformed), "raw=%q", raw)
	}
}

// A malformed reply must never be interpreted as acceptance.
func TestParseVerdict_MalformedNeverAccepts(t *testing.T) {
	v, err := ParseVerdict(`{"accepted": true}`)
	require.Error(t, err)
	assert.Nil(t, v)
}
