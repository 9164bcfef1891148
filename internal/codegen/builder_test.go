package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilderIndentation(t *testing.T) {
	b := NewBuilder("    ")
	b.Line("int main() {").Indent().Line("return %d;", 0).Dedent().Line("}")
	assert.Equal(t, "int main() {\n    return 0;\n}\n", b.String())
}

func TestBuilderVerbatimAndBlank(t *testing.T) {
	b := NewBuilder("\t")
	b.Indent().Line("100%").Blank().Raw("x")
	assert.Equal(t, "\t100%\n\nx\n", b.String())
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"a\"b\\c\nd"`, Quote("a\"b\\c\nd"))
	assert.Equal(t, `"\001"`, Quote("\x01"))
	assert.Equal(t, `"héllo"`, Quote("héllo"))
}

func TestQuoteJS(t *testing.T) {
	assert.Equal(t, `"a\"b\\c\nd"`, QuoteJS("a\"b\\c\nd"))
	assert.Equal(t, `"\u0001x\u001b\u007f"`, QuoteJS("\x01x\x1b\x7f"))
	assert.NotContains(t, QuoteJS("\x00"), `\0`)
}
