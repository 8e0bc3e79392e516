package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKeyFromURL(t *testing.T) {
	key, err := objectKeyFromURL(
		"http://localhost:9000/media/abc123.png",
		"http://localhost:9000", "media")
	require.NoError(t, err)
	assert.Equal(t, "abc123.png", key)
}

func TestObjectKeyFromURLForeign(t *testing.T) {
	cases := []string{
		"http://elsewhere.example/media/abc123.png",
		"http://localhost:9000/otherbucket/abc123.png",
		"http://localhost:9000/media/",
	}
	for _, url := range cases {
		_, err := objectKeyFromURL(url, "http://localhost:9000", "media")
		assert.ErrorIs(t, err, ErrForeignURL, url)
	}
}

func TestExtensionForType(t *testing.T) {
	assert.Equal(t, ".jpg", extensionForType("image/jpeg"))
	assert.Equal(t, ".png", extensionForType("image/png"))
	assert.Equal(t, ".webp", extensionForType("image/webp"))
	assert.Equal(t, ".gif", extensionForType("image/gif"))
	assert.Equal(t, "", extensionForType("application/octet-stream"))
}
