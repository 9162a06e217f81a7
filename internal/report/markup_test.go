package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "Gold rose 2% this week", "Gold rose 2% this week"},
		{"heading", "## Global trends", "<b>Global trends</b>"},
		{"heading without space", "###Outlook", "<b>Outlook</b>"},
		{"bold", "The **Fed** held rates", "The <b>Fed</b> held rates"},
		{"underscore bold", "__Oil__ fell", "<b>Oil</b> fell"},
		{"two bold runs", "**A** and **B**", "<b>A</b> and <b>B</b>"},
		{"dash bullet", "- exports grew", "• exports grew"},
		{"star bullet with bold", "* **VND** steady", "• <b>VND</b> steady"},
		{"backticks", "use `code` here", "use code here"},
		{"trailing space", "text   ", "text"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := RenderLine(test.input)
			assert.NoError(t, err)
			assert.Equal(t, test.expected, got)
		})
	}
}

func TestRenderLineMalformed(t *testing.T) {
	for _, input := range []string{
		"**unbalanced",
		"a __b",
		"***",
		"x < y",
		"<script>alert(1)</script>",
	} {
		_, err := RenderLine(input)
		assert.ErrorIs(t, err, ErrMalformedMarkup, "input %q", input)
	}
}

func TestStripMarkup(t *testing.T) {
	assert.Equal(t, "Heading", StripMarkup("## Heading"))
	assert.Equal(t, "bold and code", StripMarkup("**bold** and `code`"))
	assert.Equal(t, "scriptx/script", StripMarkup("<script>x</script>"))
	assert.Equal(t, "unbalanced", StripMarkup("  **unbalanced "))
}
