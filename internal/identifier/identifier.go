package identifier

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"path/filepath"

	"github.com/pkg/errors"
)

// Size is the number of random bytes used by a name.
const Size = 16

// ErrEntropyUnavailable is returned when the random source cannot be read.
var ErrEntropyUnavailable = errors.New("entropy unavailable")

// New returns a storage name for the given original filename using crypto/rand.
func New(original string) (string, error) {
	return Generate(rand.Reader, original)
}

// Generate returns a random hex name followed by the extension of original.
func Generate(entropy io.Reader, original string) (string, error) {
	buf := make([]byte, Size)
	if _, err := io.ReadFull(entropy, buf); err != nil {
		return "", errors.Wrap(ErrEntropyUnavailable, err.Error())
	}

	return hex.EncodeToString(buf) + filepath.Ext(original), nil
}
