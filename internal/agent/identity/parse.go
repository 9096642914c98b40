// Package identity decides who the user is before any identity-requiring tool
// runs: explicit numeric ids, named introductions resolved through a lookup,
// and the sticky id kept in the thread context.
package identity

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ClaimKind tags what a message says about the user's identity.
type ClaimKind int

const (
	ClaimNone ClaimKind = iota
	ClaimExplicitID
	ClaimNamedIntroduction
)

func (k ClaimKind) String() string {
	switch k {
	case ClaimExplicitID:
		return "explicit_id"
	case ClaimNamedIntroduction:
		return "named_introduction"
	default:
		return "none"
	}
}

// Claim is the parsed identity statement of one message.
type Claim struct {
	Kind   ClaimKind
	UserID int64
	Name   string
}

func ExplicitID(id int64) Claim        { return Claim{Kind: ClaimExplicitID, UserID: id} }
func NamedIntroduction(n string) Claim { return Claim{Kind: ClaimNamedIntroduction, Name: n} }

// apostrophe covers ASCII and typographic quotes.
const apostrophe = `['’]`

var explicitIDPatterns = []*regexp.Regexp{
	// I'm user id 5 / I am user 5 / I'm user_id: 5
	regexp.MustCompile(`(?i)\bi(?:` + apostrophe + `m|\s+am)\s+user(?:[\s_-]*id)?\s*[:#=]?\s*(\d+)\b`),
	// my ID is 123 / my user id is 9
	regexp.MustCompile(`(?i)\bmy\s+(?:user[\s_-]*)?id\s+is\s*[:#]?\s*(\d+)\b`),
	// user ID: 7 / user_id 7 / userid=7
	regexp.MustCompile(`(?i)\buser[\s_-]*id\s*[:#=]?\s*(\d+)\b`),
	// for user 5
	regexp.MustCompile(`(?i)\bfor\s+user\s*[:#]?\s*(\d+)\b`),
}

var namedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bmy\s+name\s+is\s+([\p{L}\p{N}_'-]+)`),
	regexp.MustCompile(`(?i)\bi(?:` + apostrophe + `m|\s+am)\s+([\p{L}\p{N}_'-]+)`),
}

// notNames are words that commonly follow "I'm" without being a name.
var notNames = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "user": {}, "not": {}, "just": {}, "also": {}, "so": {}, "very": {},
	"looking": {}, "interested": {}, "searching": {}, "trying": {}, "going": {}, "planning": {},
	"wondering": {}, "thinking": {}, "shopping": {}, "buying": {}, "having": {}, "getting": {},
	"here": {}, "back": {}, "fine": {}, "good": {}, "great": {}, "ok": {}, "okay": {}, "sorry": {},
	"new": {}, "ready": {}, "done": {}, "happy": {}, "glad": {}, "from": {}, "in": {}, "at": {},
	"on": {}, "still": {}, "training": {}, "running": {}, "hiking": {},
	"tired": {}, "sure": {}, "curious": {}, "hoping": {}, "excited": {}, "busy": {}, "confused": {},
	"unsure": {}, "afraid": {}, "really": {}, "actually": {}, "currently": {}, "pretty": {}, "quite": {},
	"about": {}, "after": {}, "with": {}, "for": {}, "to": {}, "out": {}, "all": {}, "too": {},
	"well": {}, "only": {}, "need": {}, "needing": {}, "asking": {}, "checking": {},
	"preparing": {}, "into": {}, "kind": {}, "worried": {}, "hungry": {},
}

// Parse extracts the identity claim of a message. Explicit numeric ids take
// precedence over named introductions.
func Parse(message string) Claim {
	for _, re := range explicitIDPatterns {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return ExplicitID(id)
		}
	}

	for _, re := range namedPatterns {
		for _, m := range re.FindAllStringSubmatch(message, -1) {
			name := strings.Trim(m[1], "'-_")
			if name == "" || isNumeric(name) {
				continue
			}
			if _, skip := notNames[strings.ToLower(name)]; skip {
				continue
			}
			return NamedIntroduction(name)
		}
	}

	return Claim{}
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// ErrNotUserID is returned when a lookup payload carries no usable id.
var ErrNotUserID = errors.New("payload is not a user id")

// ParseUserIDPayload reads a non-negative integer id from a lookup result:
// 5, "5", {"user_id":5} or [{"user_id":5}].
func ParseUserIDPayload(raw []byte) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, ErrNotUserID
	}

	switch raw[0] {
	case '[':
		var rows []json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil || len(rows) == 0 {
			return 0, ErrNotUserID
		}
		return ParseUserIDPayload(rows[0])
	case '{':
		var row map[string]json.RawMessage
		if err := json.Unmarshal(raw, &row); err != nil {
			return 0, ErrNotUserID
		}
		v, ok := row["user_id"]
		if !ok {
			return 0, ErrNotUserID
		}
		return ParseUserIDPayload(v)
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, ErrNotUserID
		}
		return ParseUserIDText(s)
	default:
		return ParseUserIDText(string(raw))
	}
}

// ParseUserIDText accepts only a bare non-negative integer.
func ParseUserIDText(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if !isNumeric(s) {
		return 0, ErrNotUserID
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrNotUserID
	}
	return id, nil
}
