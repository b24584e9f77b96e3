package log

import (
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogFlags(t *testing.T) {
	for _, test := range []struct {
		in   string
		want int
	}{
		{"", 0},
		{"date", log.Ldate},
		{"date,time", log.Ldate | log.Ltime},
		{"time,,UTC", log.Ltime | log.LUTC},
		{"shortfile,microseconds", log.Lshortfile | log.Lmicroseconds},
		{"potato", 0},
	} {
		assert.Equal(t, test.want, logFlags(test.in), test.in)
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0, round(-1))
	assert.Equal(t, 0, round(0))
	assert.Equal(t, 1, round(0.1))
	assert.Equal(t, 1, round(1))
	assert.Equal(t, 2, round(1.5))
	assert.Equal(t, 10, round(10.2))
}

func TestTrimPath(t *testing.T) {
	assert.Equal(t, "ftp/session.go", trimPath("/src/ftpfetch/ftp/session.go"))
	assert.Equal(t, "a.go", trimPath("a.go"))
}
