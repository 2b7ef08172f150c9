package masking

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "****", MaskSecret("1234"))
	assert.Equal(t, "****7788", MaskSecret("UTR001122337788"))
}

func TestSanitizeMessageKeepsFirstLine(t *testing.T) {
	msg := "insert invoice: connection reset\ngoroutine 1 [running]:\nmain.main()"
	assert.Equal(t, "insert invoice: connection reset", SanitizeMessage(msg, 200))
}

func TestSanitizeMessageMasksCredentials(t *testing.T) {
	msg := "failed to connect to `host=db user=billing password=hunter2 dbname=rentbill`"
	got := SanitizeMessage(msg, 200)
	assert.NotContains(t, got, "hunter2")
	assert.Contains(t, got, "password=****")

	dsn := SanitizeMessage("dial postgres://billing:hunter2@db:5432/rentbill failed", 200)
	assert.NotContains(t, dsn, "hunter2")
}

func TestSanitizeMessageTruncatesRunes(t *testing.T) {
	long := strings.Repeat("₹", 250)
	got := SanitizeMessage(long, 200)
	assert.Equal(t, 200, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
}
