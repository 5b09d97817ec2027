package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePath(t *testing.T) {
	data := map[string]interface{}{
		"tx_hash": "0xfeed",
		"position": map[string]interface{}{
			"health_factor": "2.5",
			"reserves": map[string]interface{}{
				"USDC": map[string]interface{}{"supplied": "100"},
			},
		},
	}

	value, ok := ResolvePath(data, "tx_hash")
	assert.True(t, ok)
	assert.Equal(t, "0xfeed", value)

	value, ok = ResolvePath(data, "position.health_factor")
	assert.True(t, ok)
	assert.Equal(t, "2.5", value)

	value, ok = ResolvePath(data, "position.reserves.USDC.supplied")
	assert.True(t, ok)
	assert.Equal(t, "100", value)

	_, ok = ResolvePath(data, "position.missing")
	assert.False(t, ok)

	// Walking through a leaf value fails rather than panicking.
	_, ok = ResolvePath(data, "tx_hash.deeper")
	assert.False(t, ok)

	_, ok = ResolvePath(data, "")
	assert.False(t, ok)

	_, ok = ResolvePath(nil, "anything")
	assert.False(t, ok)
}

func TestApplyMapping(t *testing.T) {
	raw := map[string]interface{}{
		"tx_hash": "0xfeed",
		"position": map[string]interface{}{
			"health_factor": "2.5",
		},
	}

	mapped := ApplyMapping(map[string]string{
		"hash":   "tx_hash",
		"health": "position.health_factor",
		"ghost":  "does.not.exist",
	}, raw)

	assert.Equal(t, "0xfeed", mapped["hash"])
	assert.Equal(t, "2.5", mapped["health"])

	// Unresolved paths leave the key absent, not nil.
	_, present := mapped["ghost"]
	assert.False(t, present)
}

func TestApplyMappingNilReturnsRawUnchanged(t *testing.T) {
	raw := map[string]interface{}{"a": 1}
	assert.Equal(t, raw, ApplyMapping(nil, raw))
	assert.Equal(t, raw, ApplyMapping(map[string]string{}, raw))
}
