package domain

import "time"

// BlacklistEntry is one forbidden emoji for one guild.
// CreatedAt is nil for entries reconstructed from the in-memory cache.
type BlacklistEntry struct {
	GuildID   int64
	Type      EmojiType
	Value     string
	Name      *string
	CreatedAt *time.Time
}

// Display renders the entry as the platform shows it.
func (e BlacklistEntry) Display() string {
	return DisplayString(e.Type, e.Value, e.Name)
}
