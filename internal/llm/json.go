package llm

import (
	"regexp"
	"strings"
)

var codeBlockPattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// ExtractJSON implements §9's tolerant JSON extractor: (1) strip markdown
// fences, (2) scan for the first balanced top-level object/array respecting
// string literals, (3) apply targeted repairs (trailing commas, unbalanced
// braces, smart quotes). Steps 1-2 are kept verbatim from the teacher's
// claude.go extractJSON; step 3 is new, required by §9 and absent from the
// teacher's version.
func ExtractJSON(text string) string {
	candidate := extractBalanced(text)
	if candidate == "" {
		return ""
	}
	return repairJSON(candidate)
}

// extractBalanced strips markdown code fences then scans for the first
// balanced {...} or [...] respecting string literals and escapes. Grounded
// verbatim on the teacher's claude.go extractJSON.
func extractBalanced(text string) string {
	if matches := codeBlockPattern.FindStringSubmatch(text); len(matches) > 1 {
		text = strings.TrimSpace(matches[1])
	} else {
		text = strings.TrimSpace(text)
	}

	startObj := strings.Index(text, "{")
	startArr := strings.Index(text, "[")

	start := -1
	isArray := false
	if startObj >= 0 && (startArr < 0 || startObj < startArr) {
		start = startObj
	} else if startArr >= 0 {
		start = startArr
		isArray = true
	}
	if start < 0 {
		return ""
	}

	text = text[start:]
	depth := 0
	inString := false
	escaped := false

	openBracket := byte('{')
	closeBracket := byte('}')
	if isArray {
		openBracket = '['
		closeBracket = ']'
	}

	for i := 0; i < len(text); i++ {
		c := text[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		if c == openBracket {
			depth++
		} else if c == closeBracket {
			depth--
			if depth == 0 {
				return text[:i+1]
			}
		}
	}

	// Unbalanced: the LLM was truncated or dropped closing braces. Close out
	// the remaining depth with a bounded count rather than discarding the
	// whole response — repairJSON's caller still validates the result.
	if depth > 0 && depth < 64 {
		return text + strings.Repeat(string(closeBracket), depth)
	}
	return ""
}

var (
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	smartQuoteReplacer   = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	)
)

// repairJSON applies the targeted repairs named in §9: trailing commas
// before a closing bracket, and smart quotes normalized to straight ASCII.
// Unbalanced-brace repair already happened in extractBalanced, where the
// bracket nesting is still known; by the time a string reaches repairJSON
// that information is lost, so it is not reattempted here.
func repairJSON(s string) string {
	s = smartQuoteReplacer.Replace(s)
	s = trailingCommaPattern.ReplaceAllString(s, "$1")
	return s
}

// truncateString truncates a string to maxLen with ellipsis, kept verbatim
// from the teacher's claude.go.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
