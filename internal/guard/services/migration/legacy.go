package migration

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"

	"github.com/haukened/reactguard/internal/guard/domain"
)

// codec keeps numbers as json.Number so snowflake ids are not rounded through float64.
var codec = sonic.Config{UseNumber: true}.Froze()

var requiredKeys = []string{"unicode_emojis", "custom_emoji_ids", "custom_emoji_names"}

// StructureReport lists every structural problem found in a legacy document.
type StructureReport struct {
	Errors   []string
	Warnings []string
}

// Valid reports whether no structural error was found.
func (r StructureReport) Valid() bool { return len(r.Errors) == 0 }

// ParseLegacy decodes and structurally validates a legacy blacklist document.
// All problems are collected before returning; doc is only usable when the
// report is valid. A non-nil error means the payload is not JSON at all.
func ParseLegacy(data []byte) (domain.LegacyBlacklist, StructureReport, error) {
	var doc domain.LegacyBlacklist
	var report StructureReport

	var raw map[string]any
	if err := codec.Unmarshal(data, &raw); err != nil {
		return doc, report, fmt.Errorf("invalid JSON: %w", err)
	}
	if raw == nil {
		report.Errors = append(report.Errors, "document must be a JSON object")
		return doc, report, nil
	}

	for _, k := range requiredKeys {
		if _, ok := raw[k]; !ok {
			report.Errors = append(report.Errors, "missing required key: "+k)
		}
	}
	if !report.Valid() {
		return doc, report, nil
	}

	if list, ok := raw["unicode_emojis"].([]any); !ok {
		report.Errors = append(report.Errors, "unicode_emojis must be a list")
	} else {
		for i, v := range list {
			s, ok := v.(string)
			if !ok || s == "" {
				report.Errors = append(report.Errors, fmt.Sprintf("unicode_emojis[%d] must be a non-empty string", i))
				continue
			}
			doc.UnicodeEmojis = append(doc.UnicodeEmojis, s)
		}
	}

	if list, ok := raw["custom_emoji_ids"].([]any); !ok {
		report.Errors = append(report.Errors, "custom_emoji_ids must be a list")
	} else {
		for i, v := range list {
			id, ok := toID(v)
			if !ok {
				report.Errors = append(report.Errors, fmt.Sprintf("custom_emoji_ids[%d] must be a positive integer", i))
				continue
			}
			doc.CustomEmojiIDs = append(doc.CustomEmojiIDs, id)
		}
	}

	if names, ok := raw["custom_emoji_names"].(map[string]any); !ok {
		report.Errors = append(report.Errors, "custom_emoji_names must be a dictionary")
	} else {
		doc.CustomEmojiNames = make(map[string]string, len(names))
		for k, v := range names {
			if _, err := strconv.ParseInt(k, 10, 64); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("custom_emoji_names key %q must be an integer", k))
				continue
			}
			s, ok := v.(string)
			if !ok {
				report.Errors = append(report.Errors, fmt.Sprintf("custom_emoji_names[%q] must be a string", k))
				continue
			}
			doc.CustomEmojiNames[k] = s
		}
	}

	if report.Valid() && doc.IsEmpty() {
		report.Warnings = append(report.Warnings, "no emoji data found in JSON file")
	}
	return doc, report, nil
}

// EncodeLegacy renders doc in the legacy on-disk format.
func EncodeLegacy(doc domain.LegacyBlacklist) ([]byte, error) {
	if doc.UnicodeEmojis == nil {
		doc.UnicodeEmojis = []string{}
	}
	if doc.CustomEmojiIDs == nil {
		doc.CustomEmojiIDs = []int64{}
	}
	if doc.CustomEmojiNames == nil {
		doc.CustomEmojiNames = map[string]string{}
	}
	return codec.MarshalIndent(doc, "", "  ")
}

func toID(v any) (int64, bool) {
	var s string
	switch n := v.(type) {
	case json.Number:
		s = n.String()
	case string:
		s = n
	default:
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
