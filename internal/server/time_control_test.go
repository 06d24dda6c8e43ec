package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTimeControl(t *testing.T) {
	valid := []string{"5+0", "3+2", "1+0", "15+10", "90+30", "none", "any"}
	for _, tc := range valid {
		assert.NoError(t, ValidateTimeControl(tc), "%s should be valid", tc)
	}

	invalid := []string{"5", "+2", "5+", "5+2+1", "5 + 0", "blitz", "-5+0", "5+-2", ""}
	for _, tc := range invalid {
		assert.Error(t, ValidateTimeControl(tc), "%s should be invalid", tc)
	}
}

func TestNormalizeTimeControlDefaults(t *testing.T) {
	assert := assert.New(t)

	tc, err := NormalizeTimeControl("", "5+0")
	assert.NoError(err)
	assert.Equal("5+0", tc)

	// The wildcard only means something inside a queue; a room created with
	// it gets the default.
	tc, err = NormalizeTimeControl("any", "5+0")
	assert.NoError(err)
	assert.Equal("5+0", tc)

	tc, err = NormalizeTimeControl("  3+2  ", "5+0")
	assert.NoError(err)
	assert.Equal("3+2", tc)

	tc, err = NormalizeTimeControl("none", "5+0")
	assert.NoError(err)
	assert.Equal("none", tc)

	_, err = NormalizeTimeControl("blitz", "5+0")
	assert.Error(err)
}

func TestNewClocksFor(t *testing.T) {
	assert := assert.New(t)

	clocks := NewClocksFor("3+2")
	assert.NotNil(clocks)
	assert.Equal(int64(180000), clocks.WhiteMS)
	assert.Equal(int64(180000), clocks.BlackMS)
	assert.Equal(int64(2000), clocks.IncrementMS)

	clocks = NewClocksFor("1+0")
	assert.Equal(int64(60000), clocks.WhiteMS)
	assert.Equal(int64(60000), clocks.BlackMS)
	assert.Equal(int64(0), clocks.IncrementMS)

	assert.Nil(NewClocksFor("none"))
}
