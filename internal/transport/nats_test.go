package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjectToken(t *testing.T) {
	cases := map[string]string{
		"trip-42":       "trip-42",
		" a.b ":         "a_b",
		"x>y*z":         "x_y_z",
		"city/line 3":   "city_line_3",
		"":              "_",
		"\t":            "_",
		"9f1c.2a/\tend": "9f1c_2a__end",
	}
	for in, want := range cases {
		assert.Equal(t, want, subjectToken(in), "input %q", in)
	}
}
