package writer

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quire/internal/ir"
	"github.com/roach88/quire/internal/pipeline"
)

func newRep(text string) *pipeline.ItemRep {
	item := ir.NewItem(ir.MustParseIdentifier("/a.md"), ir.TextContent(text, ""), nil)
	return pipeline.NewItemRep(item, "default")
}

// TestWrite tests writing, nested directories and identical rewrites.
func TestWrite(t *testing.T) {
	fs := memfs.New()
	w := New(fs)
	assert.Equal(t, "filesystem", w.Identifier())

	require.NoError(t, w.Write(newRep("hello"), "/blog/a/index.html"))
	data, err := util.ReadFile(fs, "blog/a/index.html")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, 1, w.Changed())

	require.NoError(t, w.Write(newRep("hello"), "/blog/a/index.html"))
	assert.Equal(t, 1, w.Changed(), "identical content rewritten")

	require.NoError(t, w.Write(newRep("bye"), "/blog/a/index.html"))
	assert.Equal(t, 2, w.Changed())

	require.NoError(t, w.Write(newRep("x"), "/top.txt"))
	assert.Equal(t, []string{"blog/a/index.html", "top.txt"}, w.Written())

	assert.True(t, w.Exists("/top.txt"))
	assert.False(t, w.Exists("/nope.txt"))
	assert.Equal(t, fs.Join(fs.Root(), "top.txt"), w.FullPath("/top.txt"))
}

// TestWriteRejectsBadPaths tests output path validation.
func TestWriteRejectsBadPaths(t *testing.T) {
	w := New(memfs.New())
	for _, p := range []string{"relative.html", "/", "/.."} {
		assert.Error(t, w.Write(newRep("x"), p), p)
	}
}

// TestWriteBinary tests that binary content is written byte for byte.
func TestWriteBinary(t *testing.T) {
	fs := memfs.New()
	w := New(fs)
	item := ir.NewItem(ir.MustParseIdentifier("/logo.png"), ir.BinaryContent([]byte{0, 255, 1}, "content/logo.png"), nil)
	require.NoError(t, w.Write(pipeline.NewItemRep(item, "default"), "/logo.png"))

	data, err := util.ReadFile(fs, "logo.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 255, 1}, data)
}
