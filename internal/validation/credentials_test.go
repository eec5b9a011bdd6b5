package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckNewUser(t *testing.T) {
	tests := []struct {
		name                    string
		username, display, pass string
		wantErr                 bool
	}{
		{"valid", "alice_01", "Alice", "s3cret!", false},
		{"empty username", "", "Alice", "s3cret", true},
		{"space in username", "al ice", "Alice", "s3cret", true},
		{"long username", strings.Repeat("a", 25), "Alice", "s3cret", true},
		{"blank name", "alice", "   ", "s3cret", true},
		{"empty password", "alice", "Alice", "", true},
		{"bad password char", "alice", "Alice", "pass word", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckNewUser(tt.username, tt.display, tt.pass)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
