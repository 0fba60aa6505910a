package pathkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	sensitive := Normalizer{}
	insensitive := Normalizer{FoldCase: true}

	assert.Equal(t, "docs/a.md", sensitive.Key("./docs/a.md"))
	assert.Equal(t, "docs/A.md", sensitive.Key("docs/A.md"))
	assert.Equal(t, "docs/a.md", insensitive.Key("Docs/A.MD"))

	// "é" composed vs decomposed must collide.
	assert.Equal(t, sensitive.Key("caf\u00e9.md"), sensitive.Key("cafe\u0301.md"))
}
