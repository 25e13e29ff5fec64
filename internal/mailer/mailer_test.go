package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeLink(t *testing.T) {
	t.Run("full draft", func(t *testing.T) {
		link := ComposeLink("ada@example.com", "Quick intro", "Hi Ada,\nnice to meet you")
		assert.Equal(t, "mailto:ada@example.com?body=Hi%20Ada%2C%0Anice%20to%20meet%20you&subject=Quick%20intro", link)
	})

	t.Run("empty params omitted", func(t *testing.T) {
		assert.Equal(t, "mailto:ada@example.com?subject=Hello", ComposeLink("ada@example.com", "Hello", ""))
		assert.Equal(t, "mailto:ada@example.com?body=Hello", ComposeLink("ada@example.com", "", "Hello"))
		assert.Equal(t, "mailto:ada@example.com", ComposeLink("ada@example.com", "", ""))
	})

	t.Run("spaces use percent encoding", func(t *testing.T) {
		link := ComposeLink("a@b.c", "two words", "")
		assert.NotContains(t, link, "+")
		assert.Contains(t, link, "two%20words")
	})
}
