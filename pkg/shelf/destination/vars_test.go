package destination_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jamesainslie/shelf/pkg/shelf/destination"
)

func TestVarsOrderAndInterpolate(t *testing.T) {
	t.Parallel()

	v := destination.NewVars()
	v.Set("year", 2024)
	v.Set("month", "01")
	v.Set("exif.year", 2019)
	v.Set("year", 2025)
	v.SetDefault("month", "12")

	assert.Equal(t, []string{"year", "month", "exif.year"}, v.Keys())
	assert.Equal(t, 3, v.Len())
	assert.Equal(t, "2025-01/2019/{missing}", v.Interpolate("{year}-{month}/{exif.year}/{missing}"))
	assert.Equal(t, "{ not a token }", v.Interpolate("{ not a token }"))
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"AC/DC", "ACDC"},
		{`  a<b>c:d"e|f?g*h\i  `, "abcdefghi"},
		{"tab\there\x00", "tabhere"},
		{"Trailing dots...", "Trailing dots"},
		{"", ""},
		{"Sigur Rós", "Sigur Rós"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, destination.Sanitize(tt.in), "input %q", tt.in)
	}

	long := strings.Repeat("é", 150)
	assert.Equal(t, 100, len([]rune(destination.Sanitize(long))))
}
