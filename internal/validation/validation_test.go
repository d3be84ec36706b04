package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateOrigin(t *testing.T) {
	allowed := []string{"http://localhost:7070", "127.0.0.1:7070"}

	tests := []struct {
		name      string
		origin    string
		expectErr bool
	}{
		{"exact origin", "http://localhost:7070", false},
		{"bare host entry", "http://127.0.0.1:7070", false},
		{"unknown host", "http://evil.example", true},
		{"other port", "http://localhost:9999", true},
		{"empty", "", true},
		{"bad scheme", "file://localhost:7070", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrigin(tt.origin, allowed)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		expectErr bool
	}{
		{"panel url", "http://localhost:7070/panel/abc", false},
		{"https", "https://example.com/x?y=z", false},
		{"javascript scheme", "javascript:alert(1)", true},
		{"file scheme", "file:///etc/passwd", true},
		{"command injection", "http://localhost;rm -rf /", true},
		{"space", "http://localhost/a b", true},
		{"no host", "http://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRelativePath(t *testing.T) {
	assert.NoError(t, ValidateRelativePath("web/index.html"))
	assert.NoError(t, ValidateRelativePath("./assets"))
	assert.NoError(t, ValidateRelativePath("/abs/ok"))
	assert.NoError(t, ValidateRelativePath("a/../b"))
	assert.Error(t, ValidateRelativePath(""))
	assert.Error(t, ValidateRelativePath("../outside"))
	assert.Error(t, ValidateRelativePath("a/../../b"))
}
