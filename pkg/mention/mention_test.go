package mention

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeKB struct {
	files map[string]string
	calls []string
}

func (f *fakeKB) ReadKBFile(root, kbPath string) (string, error) {
	f.calls = append(f.calls, root+"|"+kbPath)
	if content, ok := f.files[kbPath]; ok {
		return content, nil
	}
	return "", errors.New(`KB file not found: "` + kbPath + `"`)
}

func TestExpand(t *testing.T) {
	t.Run("text without mentions is unchanged", func(t *testing.T) {
		kb := &fakeKB{}
		e := NewExpander(kb)
		prompt := "refactor main.py, email me at a@b.c"
		assert.Equal(t, prompt, e.Expand(prompt, "/w"))
		assert.Empty(t, kb.calls)
	})

	t.Run("kb mention is inlined between markers", func(t *testing.T) {
		kb := &fakeKB{files: map[string]string{"design.md": "# Design"}}
		got := NewExpander(kb).Expand("follow @kb/design.md please", "/w")

		assert.Equal(t, "follow Below is the content of knowledge base file \"kb/design.md\":\n"+
			"--- KB START [design.md] ---\n# Design\n--- KB END [design.md] ---\n please", got)
		assert.Equal(t, []string{"/w|design.md"}, kb.calls)
	})

	t.Run("failed kb read keeps the mention with the error", func(t *testing.T) {
		got := NewExpander(&fakeKB{}).Expand("see @kb/missing.md", "/w")
		assert.Equal(t, `see @kb/missing.md (KB load error: Error: KB file not found: "missing.md")`, got)
	})

	t.Run("file mention becomes a tool hint without reading", func(t *testing.T) {
		kb := &fakeKB{}
		got := NewExpander(kb).Expand("fix @file:pkg/calculator.py now", "/w")
		assert.Equal(t, `fix "pkg/calculator.py" (project file reference; use get_file_content with file_path="pkg/calculator.py") now`, got)
		assert.Empty(t, kb.calls)
	})

	t.Run("mentions inside inlined kb content are not expanded", func(t *testing.T) {
		kb := &fakeKB{files: map[string]string{
			"a.md": "see @kb/b.md and @file:x.py",
			"b.md": "never read",
		}}
		got := NewExpander(kb).Expand("@kb/a.md", "/w")

		assert.Contains(t, got, "see @kb/b.md and @file:x.py")
		assert.Equal(t, []string{"/w|a.md"}, kb.calls)
	})

	t.Run("multiple mentions expand left to right", func(t *testing.T) {
		kb := &fakeKB{files: map[string]string{"one.md": "1", "two.md": "2"}}
		got := NewExpander(kb).Expand("@kb/one.md @file:m.py @kb/two.md", "/w")

		assert.Equal(t, []string{"/w|one.md", "/w|two.md"}, kb.calls)
		assert.Contains(t, got, "--- KB START [one.md] ---\n1\n")
		assert.Contains(t, got, `"m.py" (project file reference;`)
		assert.Contains(t, got, "--- KB START [two.md] ---\n2\n")
	})
}
