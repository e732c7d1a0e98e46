package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLegacyBlacklist_NamesByID(t *testing.T) {
	doc := LegacyBlacklist{CustomEmojiNames: map[string]string{"42": "party", "x": "skip"}}
	assert.Equal(t, map[int64]string{42: "party"}, doc.NamesByID())
	assert.Empty(t, LegacyBlacklist{}.NamesByID())
}

func TestLegacyBlacklist_IsEmpty(t *testing.T) {
	assert.True(t, LegacyBlacklist{CustomEmojiNames: map[string]string{"1": "a"}}.IsEmpty())
	assert.False(t, LegacyBlacklist{UnicodeEmojis: []string{"🎉"}}.IsEmpty())
}
