package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// EmojiType is the stored emoji_type column value.
type EmojiType string

const (
	EmojiUnicode EmojiType = "unicode"
	EmojiCustom  EmojiType = "custom"
)

// ParseEmojiType converts a stored column value into an EmojiType.
func ParseEmojiType(s string) (EmojiType, error) {
	switch EmojiType(strings.ToLower(strings.TrimSpace(s))) {
	case EmojiUnicode:
		return EmojiUnicode, nil
	case EmojiCustom:
		return EmojiCustom, nil
	default:
		return "", fmt.Errorf("unsupported emoji type: %q", s)
	}
}

// EmojiShape tags the variant held by an Emoji.
type EmojiShape uint8

const (
	shapeInvalid EmojiShape = iota
	// ShapePlainUnicode is a literal unicode string supplied as text.
	ShapePlainUnicode
	// ShapeCustom is a platform emoji carrying a numeric identity and a name.
	ShapeCustom
	// ShapePartialUnicode is a platform emoji object with a name but no identity.
	ShapePartialUnicode
)

// Emoji is a closed variant over the accepted emoji shapes. The zero value is invalid
// and fails Parse; build values with PlainUnicode, CustomEmoji or PartialUnicode.
type Emoji struct {
	shape    EmojiShape
	text     string
	id       int64
	animated bool
}

// PlainUnicode wraps a literal unicode emoji.
func PlainUnicode(text string) Emoji {
	return Emoji{shape: ShapePlainUnicode, text: text}
}

// CustomEmoji wraps a platform emoji identity and its display name.
func CustomEmoji(id int64, name string) Emoji {
	return Emoji{shape: ShapeCustom, id: id, text: name}
}

// AnimatedCustomEmoji is CustomEmoji for animated platform emoji. Animation only affects display.
func AnimatedCustomEmoji(id int64, name string) Emoji {
	return Emoji{shape: ShapeCustom, id: id, text: name, animated: true}
}

// PartialUnicode wraps a platform emoji object whose identity is null.
func PartialUnicode(name string) Emoji {
	return Emoji{shape: ShapePartialUnicode, text: name}
}

// Shape returns the variant tag.
func (e Emoji) Shape() EmojiShape { return e.shape }

// ID returns the platform identity, zero for unicode shapes.
func (e Emoji) ID() int64 { return e.id }

// Name returns the display name for custom emoji, or the literal for unicode shapes.
func (e Emoji) Name() string { return e.text }

// Animated reports whether a custom emoji is animated.
func (e Emoji) Animated() bool { return e.animated }

func (e Emoji) String() string { return e.Display() }

// ParsedEmoji is the normalized (type, value, name) triple stored in guild_blacklists.
type ParsedEmoji struct {
	Type  EmojiType
	Value string
	Name  *string // only set for custom emoji
}

// Parse normalizes e into its stored triple.
func Parse(e Emoji) (ParsedEmoji, error) {
	switch e.shape {
	case ShapePlainUnicode:
		if e.text == "" {
			return ParsedEmoji{}, fmt.Errorf("%w: empty unicode emoji", ErrParse)
		}
		return ParsedEmoji{Type: EmojiUnicode, Value: e.text}, nil
	case ShapeCustom:
		if e.id <= 0 {
			return ParsedEmoji{}, fmt.Errorf("%w: custom emoji without identity", ErrParse)
		}
		name := e.text
		return ParsedEmoji{Type: EmojiCustom, Value: strconv.FormatInt(e.id, 10), Name: &name}, nil
	case ShapePartialUnicode:
		if e.text == "" {
			return ParsedEmoji{}, fmt.Errorf("%w: partial emoji without name", ErrParse)
		}
		return ParsedEmoji{Type: EmojiUnicode, Value: e.text}, nil
	default:
		return ParsedEmoji{}, ErrParse
	}
}

// Display renders e the way the platform shows it: the literal for unicode,
// <:name:id> for custom and <a:name:id> for animated custom emoji. A missing
// custom name becomes "unknown".
func (e Emoji) Display() string {
	switch e.shape {
	case ShapeCustom:
		name := e.text
		if name == "" {
			name = UnknownEmojiName
		}
		if e.animated {
			return fmt.Sprintf("<a:%s:%d>", name, e.id)
		}
		return fmt.Sprintf("<:%s:%d>", name, e.id)
	default:
		return e.text
	}
}

// DisplayString renders a stored triple. A missing custom name becomes "unknown".
func DisplayString(t EmojiType, value string, name *string) string {
	if t == EmojiUnicode {
		return value
	}
	n := UnknownEmojiName
	if name != nil && *name != "" {
		n = *name
	}
	return fmt.Sprintf("<:%s:%s>", n, value)
}

// UnknownEmojiName stands in for custom emoji whose display name was never recorded.
const UnknownEmojiName = "unknown"

var customEmojiPattern = regexp.MustCompile(`^<(a?):(\w+):(\d+)>$`)

// ParseEmojiText converts administrator input into an Emoji: <:name:id> and <a:name:id>
// become custom emoji, a bare number becomes a custom emoji with an unknown name, and
// anything else is taken as a literal unicode emoji.
func ParseEmojiText(s string) (Emoji, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Emoji{}, fmt.Errorf("%w: empty input", ErrParse)
	}
	if m := customEmojiPattern.FindStringSubmatch(s); m != nil {
		id, err := strconv.ParseInt(m[3], 10, 64)
		if err != nil {
			return Emoji{}, fmt.Errorf("%w: %w", ErrParse, err)
		}
		if m[1] == "a" {
			return AnimatedCustomEmoji(id, m[2]), nil
		}
		return CustomEmoji(id, m[2]), nil
	}
	if isDigits(s) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Emoji{}, fmt.Errorf("%w: %w", ErrParse, err)
		}
		return CustomEmoji(id, UnknownEmojiName), nil
	}
	return PlainUnicode(s), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
