package identifier

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexname = regexp.MustCompile(`^[0-9a-f]{32}`)

func TestNew(t *testing.T) {
	name, err := New("holidays.png")
	require.NoError(t, err)

	assert.True(t, hexname.MatchString(name))
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.Len(t, name, 2*Size+len(".png"))
}

func TestNew_Distinct(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		name, err := New("a.txt")
		require.NoError(t, err)
		assert.False(t, seen[name])
		seen[name] = true
	}
}

func TestGenerate_Extension(t *testing.T) {
	tests := map[string]string{
		"report.pdf":     ".pdf",
		"archive.tar.gz": ".gz",
		"README":         "",
		"photo.JPG":      ".JPG",
		"":               "",
		"../../etc/x.sh": ".sh",
	}

	for original, ext := range tests {
		name, err := Generate(bytes.NewReader(make([]byte, Size)), original)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("0", 2*Size)+ext, name, original)
	}
}

func TestGenerate_EntropyUnavailable(t *testing.T) {
	_, err := Generate(bytes.NewReader(make([]byte, Size-1)), "a.png")
	assert.True(t, errors.Is(err, ErrEntropyUnavailable))

	_, err = Generate(failingReader{}, "a.png")
	assert.True(t, errors.Is(err, ErrEntropyUnavailable))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}
