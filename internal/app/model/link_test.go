package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLink_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	assert.False(t, (&Link{}).Expired(now))
	assert.True(t, (&Link{ExpiresAt: &past}).Expired(now))
	assert.True(t, (&Link{ExpiresAt: &now}).Expired(now))
	assert.False(t, (&Link{ExpiresAt: &future}).Expired(now))
}

func TestLink_Slugs(t *testing.T) {
	alias := "alias"
	empty := ""
	assert.Equal(t, []string{"main"}, (&Link{Slug: "main"}).Slugs())
	assert.Equal(t, []string{"main"}, (&Link{Slug: "main", CustomSlug: &empty}).Slugs())
	assert.Equal(t, []string{"main", "alias"}, (&Link{Slug: "main", CustomSlug: &alias}).Slugs())
}
