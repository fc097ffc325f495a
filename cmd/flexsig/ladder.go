package main

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

type LadderOptions struct {
	Sentinel            string
	Identity            string
	Window              int
	MinExperienceDigits int
}

func ladderOptions(cfg LadderConfig) LadderOptions {
	return LadderOptions{
		Sentinel:            cfg.Sentinel,
		Identity:            cfg.Identity,
		Window:              cfg.Window,
		MinExperienceDigits: cfg.MinExperienceDigits,
	}
}

// characterClasses is the canonical spelling of every playable class.
var characterClasses = []string{
	"Amazon",
	"Assassin",
	"Barbarian",
	"Druid",
	"Necromancer",
	"Paladin",
	"Sorceress",
}

type ladderField int

const (
	fieldRank ladderField = iota
	fieldLevel
	fieldExperience
	fieldClass
	fieldLastActive
)

type ladderLabel struct {
	field ladderField
	words []string
}

// ladderLabels are matched case-insensitively against the page tokens.
// Longer labels come first so "last active" is not shadowed by a shorter one.
var ladderLabels = []ladderLabel{
	{fieldLastActive, []string{"last", "active"}},
	{fieldLastActive, []string{"last", "online"}},
	{fieldExperience, []string{"experience"}},
	{fieldExperience, []string{"exp"}},
	{fieldLevel, []string{"level"}},
	{fieldLevel, []string{"lvl"}},
	{fieldRank, []string{"rank"}},
	{fieldClass, []string{"class"}},
}

// numberRe accepts plain digit runs and digit groups split by a thousands
// separator.
var numberRe = regexp.MustCompile(`^(\d+|\d{1,3}([,.'_]\d{3})+)$`)

// ExtractLadder pulls the ladder fields out of a fetched page. It never fails:
// whatever it cannot find stays at opts.Sentinel.
func ExtractLadder(text string, opts LadderOptions) LadderStats {
	if opts.Window <= 0 {
		opts.Window = 6
	}
	stats := NewLadderStats(opts.Sentinel, opts.Identity)
	tokens := pageTokens(text)

	if v, ok := firstMatch(labelWindows(tokens, fieldRank, opts.Window), leadingNumber); ok {
		stats.Rank = v
	}
	if v, ok := firstMatch(labelWindows(tokens, fieldLevel, opts.Window), leadingNumber); ok {
		stats.Level = v
	}
	// experience may sit behind smaller numbers, so the whole window is searched
	experience := func(w []string) (string, bool) { return firstNumber(w, opts.MinExperienceDigits) }
	if v, ok := firstMatch(labelWindows(tokens, fieldExperience, opts.Window), experience); ok {
		stats.Experience = v
	}

	// without a Class label any known class name on the page will do
	classWindows := labelWindows(tokens, fieldClass, opts.Window)
	if len(classWindows) == 0 {
		classWindows = [][]string{tokens}
	}
	if v, ok := firstMatch(classWindows, firstClass); ok {
		stats.Class = v
	}

	if v, ok := firstMatch(labelWindows(tokens, fieldLastActive, opts.Window), joinWords); ok {
		stats.LastActive = v
	}
	return stats
}

func firstMatch(windows [][]string, pick func([]string) (string, bool)) (string, bool) {
	for _, w := range windows {
		if v, ok := pick(w); ok {
			return v, true
		}
	}
	return "", false
}

func joinWords(w []string) (string, bool) {
	if len(w) == 0 {
		return "", false
	}
	return strings.Join(w, " "), true
}

// labelWindows returns, for every occurrence of a label of field, the tokens
// that follow it up to the window size or the next label.
func labelWindows(tokens []string, field ladderField, window int) [][]string {
	var windows [][]string
	for i := 0; i < len(tokens); i++ {
		for _, l := range ladderLabels {
			if l.field != field || !matchesAt(tokens, i, l.words) {
				continue
			}
			start := i + len(l.words)
			for start < len(tokens) && tokens[start] == ":" {
				start++
			}
			end := min(start+window, len(tokens))
			for j := start; j < end; j++ {
				if labelAt(tokens, j) {
					end = j
					break
				}
			}
			windows = append(windows, tokens[start:end:end])
			break
		}
	}
	return windows
}

func labelAt(tokens []string, i int) bool {
	for _, l := range ladderLabels {
		if matchesAt(tokens, i, l.words) {
			return true
		}
	}
	return false
}

func matchesAt(tokens []string, i int, words []string) bool {
	if i+len(words) > len(tokens) {
		return false
	}
	for k, w := range words {
		t := strings.ToLower(tokens[i+k])
		if k == len(words)-1 {
			t = strings.TrimRight(t, ":")
		}
		if t != w {
			return false
		}
	}
	return true
}

// leadingNumber only accepts the token right after the label.
func leadingNumber(window []string) (string, bool) {
	if len(window) == 0 {
		return "", false
	}
	return parseNumber(window[0])
}

func firstNumber(window []string, minDigits int) (string, bool) {
	for _, t := range window {
		if n, ok := parseNumber(t); ok && len(n) >= minDigits {
			return n, true
		}
	}
	return "", false
}

// parseNumber strips a leading '#', trailing punctuation and thousands
// separators, and reports whether what is left is all digits.
func parseNumber(t string) (string, bool) {
	t = strings.TrimPrefix(t, "#")
	t = strings.TrimRight(t, ".,;:)")
	if !numberRe.MatchString(t) {
		return "", false
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, t), true
}

func firstClass(tokens []string) (string, bool) {
	for _, t := range tokens {
		t = strings.Trim(t, ".,;:()[]")
		for _, c := range characterClasses {
			if strings.EqualFold(t, c) {
				return c, true
			}
		}
	}
	return "", false
}

// gluedLabelRe splits tokens like "Level:99" into "Level:" and "99".
var gluedLabelRe = regexp.MustCompile(`^([A-Za-z]+:)(\S+)$`)

// pageTokens flattens the page into whitespace separated words. Markup is
// dropped, script and style bodies included.
func pageTokens(text string) []string {
	if strings.ContainsRune(text, '<') {
		text = htmlText(text)
	}
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if m := gluedLabelRe.FindStringSubmatch(f); m != nil {
			tokens = append(tokens, m[1], m[2])
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func htmlText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawTextTag(name) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawTextTag(name) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isRawTextTag(name []byte) bool {
	n := string(name)
	return n == "script" || n == "style" || n == "noscript"
}
