// Package filter implements the event matching engine.
package filter

import (
	"regexp"
	"strings"

	"callrelay/internal/model"
)

// RegexPrefix marks a text pattern as a full regular expression.
// It is only honored as a fixed prefix at the start of the pattern.
const RegexPrefix = "regex:"

var phoneStrip = regexp.MustCompile(`[^0-9A-Z*]`)

// Test evaluates an event against the rule set and returns the
// combined rejection flags. StatusAccepted means every gate passed.
//
// The whitelist always overrides the blacklist: a blacklisted phone or
// text is still accepted when a whitelist pattern also matches it.
func Test(ev *model.Event, rs *model.RuleSet) model.Status {
	status := model.StatusAccepted

	if !rs.HasTrigger(ev.Category()) {
		status |= model.StatusTriggerOff
	}

	if matchesPhoneList(rs.PhoneBlacklist, ev.Phone) &&
		!matchesPhoneList(rs.PhoneWhitelist, ev.Phone) {
		status |= model.StatusNumberBlacklisted
	}

	if ev.IsSMS() {
		if matchesTextList(rs.TextBlacklist, *ev.Text) &&
			!matchesTextList(rs.TextWhitelist, *ev.Text) {
			status |= model.StatusTextBlacklisted
		}
	}

	return status
}

func matchesPhoneList(patterns []string, phone string) bool {
	for _, p := range patterns {
		if matchesPhone(p, phone) {
			return true
		}
	}
	return false
}

// matchesPhone checks one phone pattern against a phone number.
// Both sides are normalized to letters, digits and '*' before the
// anchored wildcard match.
func matchesPhone(pattern, phone string) bool {
	pattern = normalizePhone(pattern)
	phone = normalizePhone(phone)

	re, err := regexp.Compile(wildcardExpr(pattern))
	if err != nil {
		return false
	}
	return re.MatchString(phone)
}

// wildcardExpr translates a normalized phone pattern into an anchored
// regular expression. A run of '*' matches any span of characters not
// containing the literal directly before the run; a run at the start
// of the pattern matches anything. 7962881*** therefore covers
// 79628810559 but not 79628811111.
func wildcardExpr(pattern string) string {
	var b strings.Builder
	b.WriteByte('^')
	var prev byte
	for i := 0; i < len(pattern); {
		if pattern[i] != '*' {
			prev = pattern[i]
			b.WriteString(regexp.QuoteMeta(string(prev)))
			i++
			continue
		}
		for i < len(pattern) && pattern[i] == '*' {
			i++
		}
		if prev == 0 {
			b.WriteString(".*")
		} else {
			b.WriteString("[^" + string(prev) + "]*")
		}
	}
	b.WriteByte('$')
	return b.String()
}

func normalizePhone(s string) string {
	return phoneStrip.ReplaceAllString(strings.ToUpper(s), "")
}

func matchesTextList(patterns []string, text string) bool {
	for _, p := range patterns {
		if matchesText(p, text) {
			return true
		}
	}
	return false
}

// matchesText checks one text pattern against message text.
// A pattern carrying the regex prefix is matched as a full regular
// expression; an invalid expression never matches. Either way the
// pattern body also matches by plain case-sensitive containment.
func matchesText(pattern, text string) bool {
	if expr, ok := strings.CutPrefix(pattern, RegexPrefix); ok {
		if re, err := regexp.Compile("^(?:" + expr + ")$"); err == nil && re.MatchString(text) {
			return true
		}
		return strings.Contains(text, expr)
	}
	return strings.Contains(text, pattern)
}

// ValidatePattern checks whether a regex-tagged text pattern compiles.
// Untagged patterns are plain substrings and are always valid.
func ValidatePattern(pattern string) error {
	expr, ok := strings.CutPrefix(pattern, RegexPrefix)
	if !ok {
		return nil
	}
	_, err := regexp.Compile(expr)
	return err
}
