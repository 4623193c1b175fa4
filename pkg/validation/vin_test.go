package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidVIN(t *testing.T) {
	tests := []struct {
		name  string
		vin   string
		valid bool
	}{
		{"well formed", "WBA3A5C51CF256789", true},
		{"digits only", "12345678901234567", true},
		{"too short", "WBA3A5C51CF25678", false},
		{"too long", "WBA3A5C51CF2567890", false},
		{"contains I", "WBA3A5C51CF25678I", false},
		{"contains O", "WBA3A5C51CF25678O", false},
		{"contains Q", "WBA3A5C51CF25678Q", false},
		{"lowercase rejected", "wba3a5c51cf256789", false},
		{"empty", "", false},
		{"embedded space", "WBA3A5C51 F256789", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidVIN(tt.vin))
		})
	}
}
