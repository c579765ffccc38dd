package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeMarkdown(t *testing.T) {
	v1, err := EscapeMarkdown("a_b*c[d]`e", MarkdownV1)
	require.NoError(t, err)
	assert.Equal(t, "a\\_b\\*c\\[d]\\`e", v1)

	v2, err := EscapeMarkdown("1.5! (x)", MarkdownV2)
	require.NoError(t, err)
	assert.Equal(t, "1\\.5\\! \\(x\\)", v2)

	_, err = EscapeMarkdown("x", 3)
	assert.Error(t, err)
}

func TestHTML(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;Tom &amp; Jerry&lt;/b&gt;", HTML("<b>Tom & Jerry</b>"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "Приве…", Truncate("Привет мир", 6))
	assert.Equal(t, "ab…", Truncate("ab cd", 4))
	assert.Equal(t, "", Truncate("x", 0))
}

func TestPrice(t *testing.T) {
	assert.Equal(t, "12.50 EUR", Price(1250, "EUR"))
	assert.Equal(t, "0.05", Price(5, ""))
	assert.Equal(t, "-1.00 USD", Price(-100, "USD"))
}

func TestParsePrice(t *testing.T) {
	for in, want := range map[string]int64{"25": 2500, "19.9": 1990, "19,99": 1999, " 0.05 ": 5} {
		got, err := ParsePrice(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "0", "0.00", "-3", "1.234", "12.", ".5", "abc", "1e3"} {
		_, err := ParsePrice(in)
		assert.ErrorIs(t, err, ErrBadPrice, in)
	}
}

func TestPointers(t *testing.T) {
	assert.Equal(t, "d", DerefString(nil, "d"))
	assert.Equal(t, "v", DerefString(Ptr("v"), "d"))
	assert.Equal(t, int64(3), DerefInt64(Ptr(int64(3)), 0))
	assert.Nil(t, NilIfEmpty(""))
	assert.Equal(t, "x", *NilIfEmpty("x"))
}
