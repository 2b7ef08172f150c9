package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)
)

const (
	// DefaultCodeTemplate renders codes such as INV-BLR01-202610-00042.
	DefaultCodeTemplate = "{PREFIX}-{OUTLET}-{YYYY}{MM}-{SEQ5}"
	// FallbackCodeTemplate marks codes issued without a counter value.
	FallbackCodeTemplate = "{PREFIX}-{OUTLET}-{YYYY}{MM}-F{TOKEN}"
)

type Parts struct {
	Prefix string
	Outlet string
	At     time.Time
	Seq    int64
	Token  string
}

// FormatCode expands template with parts. Date tokens use the UTC calendar.
// It is pure: no clock, no storage.
func FormatCode(template string, parts Parts) (string, error) {
	if template == "" {
		return "", fmt.Errorf("code template is empty")
	}
	if parts.Seq < 0 {
		return "", fmt.Errorf("invalid sequence: %d", parts.Seq)
	}

	at := parts.At.UTC()
	out := template

	out = strings.ReplaceAll(out, "{PREFIX}", parts.Prefix)
	out = strings.ReplaceAll(out, "{OUTLET}", parts.Outlet)
	out = strings.ReplaceAll(out, "{YYYY}", at.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", at.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", at.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", at.Format("02"))
	out = strings.ReplaceAll(out, "{TOKEN}", parts.Token)

	out = strings.ReplaceAll(out, "{SEQ}", strconv.FormatInt(parts.Seq, 10))
	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		if len(match) != 2 {
			return m
		}
		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}
		return fmt.Sprintf("%0*d", width, parts.Seq)
	})

	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in code format: %s", out)
	}

	return out, nil
}
