package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("root", func(t *testing.T) {
		addr, err := Parse(":")
		require.NoError(t, err)
		assert.True(t, addr.IsRoot())
		assert.Equal(t, ":", addr.String())
	})

	t.Run("nested", func(t *testing.T) {
		addr, err := Parse(":sub:helloWorld")
		require.NoError(t, err)
		assert.Equal(t, []string{"sub", "helloWorld"}, addr.Elements())
		assert.Equal(t, ":sub:helloWorld", addr.String())
		assert.Equal(t, "helloWorld", addr.Name())
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := Parse("")
		assert.ErrorContains(t, err, "cannot be empty")
	})

	t.Run("rejects relative", func(t *testing.T) {
		_, err := Parse("a:b")
		assert.ErrorContains(t, err, "not absolute")
	})

	t.Run("rejects empty element", func(t *testing.T) {
		_, err := Parse(":a::b")
		assert.ErrorContains(t, err, "empty element")
	})

	t.Run("rejects invalid characters", func(t *testing.T) {
		_, err := Parse(":a:Ö")
		assert.ErrorContains(t, err, "invalid element")

		_, err = Parse(":a b")
		assert.ErrorContains(t, err, "invalid element")
	})
}

func TestAppendParent(t *testing.T) {
	addr := Root.Append("a").Append("b")
	assert.Equal(t, ":a:b", addr.String())
	assert.Equal(t, ":a", addr.Parent().String())
	assert.Equal(t, ":", addr.Parent().Parent().String())
	assert.True(t, Root.Parent().IsRoot())
}

func TestEqual(t *testing.T) {
	assert.True(t, MustParse(":a:b").Equal(MustParse(":a:b")))
	assert.False(t, MustParse(":a:b").Equal(MustParse(":a")))
	assert.False(t, MustParse(":a:b").Equal(MustParse(":a:c")))
	assert.True(t, Root.Equal(MustParse(":")))
}

func TestAppendDoesNotAliasParent(t *testing.T) {
	base := MustParse(":a")
	b := base.Append("b")
	c := base.Append("c")
	assert.Equal(t, ":a:b", b.String())
	assert.Equal(t, ":a:c", c.String())
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("build"))
	assert.True(t, ValidName("hello-world_1.2@x"))
	assert.False(t, ValidName(""))
	assert.False(t, ValidName("a:b"))
	assert.False(t, ValidName("*"))
}
