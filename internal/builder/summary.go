package builder

import (
	"regexp"
	"strings"
)

var summaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)fatal error:`),
	regexp.MustCompile(`(?i)undefined reference to`),
	regexp.MustCompile(`(?i)no rule to make target`),
	regexp.MustCompile(`(?i)no such file or directory`),
	regexp.MustCompile(`(?i)command not found`),
	regexp.MustCompile(`(?i)could not compile`),
	regexp.MustCompile(`(?i)error(\[E\d+\])?:`),
	regexp.MustCompile(`(?i)failed`),
}

// make's own "*** [target] Error N" trailer says nothing about the cause.
var makeTrailer = regexp.MustCompile(`^make(\[\d+\])?: \*\*\*`)

func summarizeLog(logContent string) string {
	if strings.TrimSpace(logContent) == "" {
		return ""
	}
	lines := strings.Split(tailLogLines(logContent, 200), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || isNoiseLine(line) {
			continue
		}
		if matchesAny(line, summaryPatterns) {
			return trimSummary(line)
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || isNoiseLine(line) {
			continue
		}
		return trimSummary(line)
	}
	return ""
}

func tailLogLines(content string, n int) string {
	lines := strings.Split(content, "\n")
	if len(lines) <= n {
		return content
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

func matchesAny(line string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func isNoiseLine(line string) bool {
	if makeTrailer.MatchString(line) {
		return true
	}
	noise := []string{
		"entering directory",
		"leaving directory",
		"compiling ",
		"warning:",
		"note:",
	}
	lower := strings.ToLower(line)
	for _, token := range noise {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

func trimSummary(line string) string {
	const maxLen = 240
	if len(line) <= maxLen {
		return line
	}
	return line[:maxLen] + "..."
}
