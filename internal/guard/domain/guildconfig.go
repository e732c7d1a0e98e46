package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultTimeoutDuration is the restriction length, in seconds, for guilds without an override.
	DefaultTimeoutDuration = 300
	// MaxTimeoutDuration is the platform ceiling for a timed restriction (28 days).
	MaxTimeoutDuration = 2419200
)

// GuildConfig holds one guild's moderation settings.
//
// A zero CreatedAt/UpdatedAt means the value was synthesized in memory and never persisted.
type GuildConfig struct {
	GuildID         int64
	LogChannelID    *int64 // nil when no audit channel is configured
	TimeoutDuration int    // seconds
	DMOnTimeout     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewDefaultGuildConfig returns the documented defaults for guildID.
func NewDefaultGuildConfig(guildID int64) GuildConfig {
	return GuildConfig{GuildID: guildID, TimeoutDuration: DefaultTimeoutDuration}
}

// Persisted reports whether the value was loaded from or written to the store.
func (c GuildConfig) Persisted() bool {
	return !c.CreatedAt.IsZero()
}

// HasLogChannel reports whether an audit channel is configured.
func (c GuildConfig) HasLogChannel() bool {
	return c.LogChannelID != nil && *c.LogChannelID > 0
}

// Clone returns a deep copy so callers never share the cached pointer fields.
func (c GuildConfig) Clone() GuildConfig {
	out := c
	if c.LogChannelID != nil {
		id := *c.LogChannelID
		out.LogChannelID = &id
	}
	return out
}

// GuildConfigPatch is a partial update. Nil fields are left untouched.
// Setting ClearLogChannel removes the audit channel; it cannot be combined with LogChannelID.
type GuildConfigPatch struct {
	LogChannelID    *int64 `validate:"omitempty,gt=0"`
	ClearLogChannel bool   `validate:"excluded_with=LogChannelID"`
	TimeoutDuration *int   `validate:"omitempty,gte=0,lte=2419200"`
	DMOnTimeout     *bool
}

// IsEmpty reports whether the patch touches no field.
func (p GuildConfigPatch) IsEmpty() bool {
	return p.LogChannelID == nil && !p.ClearLogChannel && p.TimeoutDuration == nil && p.DMOnTimeout == nil
}

var patchValidator = validator.New(validator.WithRequiredStructEnabled())

// patchFieldNames maps struct field names to their stored column names.
var patchFieldNames = map[string]string{
	"LogChannelID":    "log_channel_id",
	"ClearLogChannel": "log_channel_id",
	"TimeoutDuration": "timeout_duration",
	"DMOnTimeout":     "dm_on_timeout",
}

var patchConstraints = map[string]string{
	"log_channel_id":   "must be a positive integer or None",
	"timeout_duration": fmt.Sprintf("must be an integer between 0 and %d seconds", MaxTimeoutDuration),
	"dm_on_timeout":    "must be a boolean value",
}

// Validate checks every supplied field and returns all violations joined together.
// Each violation is a *ValidationError.
func (p GuildConfigPatch) Validate() error {
	err := patchValidator.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	out := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		column := patchFieldNames[fe.StructField()]
		constraint := patchConstraints[column]
		if fe.StructField() == "ClearLogChannel" {
			constraint = "cannot be both set and cleared"
		}
		out = append(out, &ValidationError{Field: column, Constraint: constraint})
	}
	return errors.Join(out...)
}

// Apply returns a copy of c with the patch applied. It does not validate.
func (p GuildConfigPatch) Apply(c GuildConfig) GuildConfig {
	out := c.Clone()
	if p.LogChannelID != nil {
		id := *p.LogChannelID
		out.LogChannelID = &id
	}
	if p.ClearLogChannel {
		out.LogChannelID = nil
	}
	if p.TimeoutDuration != nil {
		out.TimeoutDuration = *p.TimeoutDuration
	}
	if p.DMOnTimeout != nil {
		out.DMOnTimeout = *p.DMOnTimeout
	}
	return out
}
