// ABOUTME: Tests for playbook loading and parsing
package playbook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePlaybook = `{
  "bullets": {
    "b-002": {"id": "str-2", "section": "strategies", "content": "Lead with the customer's numbers."},
    "b-001": {"id": "str-1", "section": "strategies", "content": "Compare against last year first."},
    "b-003": {"section": "pitfalls", "content": "Do not quote unverified figures."}
  }
}`

func TestParseFillsMissingIDs(t *testing.T) {
	pb, err := Parse(strings.NewReader(samplePlaybook))
	require.NoError(t, err)
	require.Len(t, pb.Bullets, 3)
	assert.Equal(t, "b-003", pb.Bullets["b-003"].ID)
	assert.Equal(t, "str-1", pb.Bullets["b-001"].ID)
}

func TestContentsAreInKeyOrder(t *testing.T) {
	pb, err := Parse(strings.NewReader(samplePlaybook))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Compare against last year first.",
		"Lead with the customer's numbers.",
		"Do not quote unverified figures.",
	}, pb.Contents())
}

func TestParseRejectsEmptyPlaybook(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"bullets": {}}`))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playbook.json")
	require.NoError(t, os.WriteFile(path, []byte(samplePlaybook), 0o600))

	pb, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, pb.Ordered(), 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
