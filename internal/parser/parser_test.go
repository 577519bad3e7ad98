package parser

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseUnsupportedFormat(t *testing.T) {
	path := writeFile(t, "slides.key", "whatever")
	_, err := Parse(path)
	require.Error(t, err)
	var unsupported *ErrUnsupportedFormat
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, ".key", unsupported.Ext)
}

func TestParseText(t *testing.T) {
	path := writeFile(t, "notes.txt", "Plain notes about sensors.\nSecond line.")
	sections, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, 1, sections[0].Page)
	assert.Contains(t, sections[0].Text, "Plain notes about sensors.")
}

func TestParseTextEmpty(t *testing.T) {
	path := writeFile(t, "empty.txt", "   \n\t\n")
	sections, err := Parse(path)
	require.NoError(t, err)
	assert.Empty(t, sections)
}

func TestParseMarkdownStripsFrontmatter(t *testing.T) {
	path := writeFile(t, "page.md", "---\ntitle: Kinematics\n---\n\n# Kinematics\n\nForward kinematics maps joint angles to pose.\n")
	sections, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Contains(t, sections[0].Text, "Forward kinematics maps joint angles to pose.")
	assert.NotContains(t, sections[0].Text, "title:")
}

func TestParsePPTXSlidesBecomeSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	slides := []string{
		`<p:sld><a:t>Sensors overview</a:t></p:sld>`,
		`<p:sld><a:t>Actuators</a:t><a:t>and motors</a:t></p:sld>`,
		`<p:sld><a:t>   </a:t></p:sld>`,
	}
	for i, content := range slides {
		entry, err := w.Create("ppt/slides/slide" + string(rune('1'+i)) + ".xml")
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	sections, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, sections, 2, "blank slide dropped")
	assert.Equal(t, 1, sections[0].Page)
	assert.Contains(t, sections[0].Text, "Sensors overview")
	assert.Equal(t, 2, sections[1].Page)
	assert.Contains(t, sections[1].Text, "Actuators")
	assert.Contains(t, sections[1].Text, "and motors")
}

func TestExtractTextFromXML(t *testing.T) {
	got := extractTextFromXML(`<w:p><w:t>Hello</w:t><w:t xml:space="preserve"> world</w:t></w:p><w:tbl/>`)
	assert.Equal(t, "Hello  world ", got)
}
