package domain

import "strconv"

// LegacyBlacklist is the single-tenant JSON document the bot used before per-guild storage.
type LegacyBlacklist struct {
	UnicodeEmojis    []string          `json:"unicode_emojis"`
	CustomEmojiIDs   []int64           `json:"custom_emoji_ids"`
	CustomEmojiNames map[string]string `json:"custom_emoji_names"`
}

// IsEmpty reports whether the document lists no emoji at all.
func (l LegacyBlacklist) IsEmpty() bool {
	return len(l.UnicodeEmojis) == 0 && len(l.CustomEmojiIDs) == 0
}

// NamesByID converts the document's string-keyed names into platform identities.
// Keys that are not integers are skipped.
func (l LegacyBlacklist) NamesByID() map[int64]string {
	out := make(map[int64]string, len(l.CustomEmojiNames))
	for k, v := range l.CustomEmojiNames {
		if id, err := strconv.ParseInt(k, 10, 64); err == nil {
			out[id] = v
		}
	}
	return out
}
