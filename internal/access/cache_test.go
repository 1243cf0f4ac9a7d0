package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecisionCache_SetGetInvalidate(t *testing.T) {
	c := NewDecisionCache(8, time.Minute)
	d := adminDecision(true)

	_, ok := c.Get("u1")
	assert.False(t, ok)

	c.Set("u1", d)
	got, ok := c.Get("u1")
	assert.True(t, ok)
	assert.Equal(t, d, got)

	c.Invalidate("u1")
	_, ok = c.Get("u1")
	assert.False(t, ok)
}

func TestDecisionCache_Expires(t *testing.T) {
	c := NewDecisionCache(8, 20*time.Millisecond)
	c.Set("u1", ownerDecision())

	assert.Eventually(t, func() bool {
		_, ok := c.Get("u1")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestDecisionCache_DisabledIsNop(t *testing.T) {
	for _, c := range []DecisionCache{NewDecisionCache(0, time.Minute), NewDecisionCache(8, 0)} {
		assert.IsType(t, NopDecisionCache{}, c)
		c.Set("u1", adminDecision(true))
		_, ok := c.Get("u1")
		assert.False(t, ok)
	}
}

func TestRole_HasAccess(t *testing.T) {
	assert.True(t, RoleOwner.HasAccess())
	assert.True(t, RoleAdmin.HasAccess())
	assert.False(t, RoleUser.HasAccess())

	_, err := ParseRole("moderator")
	assert.Error(t, err)
	r, err := ParseRole("admin")
	assert.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)
}
