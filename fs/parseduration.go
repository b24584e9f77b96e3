package fs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Duration is a time.Duration with some more parsing options
type Duration time.Duration

// Turn Duration into a string
func (d Duration) String() string {
	for i := len(durationSuffixes) - 2; i >= 0; i-- {
		suffix := &durationSuffixes[i]
		if math.Abs(float64(d)) >= float64(suffix.Multiplier) {
			units := float64(d) / float64(suffix.Multiplier)
			return strconv.FormatFloat(units, 'f', -1, 64) + suffix.Suffix
		}
	}
	return time.Duration(d).String()
}

// Suffixes beyond those understood by time.ParseDuration
var durationSuffixes = []struct {
	Suffix     string
	Multiplier time.Duration
}{
	{Suffix: "d", Multiplier: time.Hour * 24},
	{Suffix: "w", Multiplier: time.Hour * 24 * 7},

	// Default to second
	{Suffix: "", Multiplier: time.Second},
}

// ParseDuration parses a duration string. Accept ms|s|m|h|d|w
// suffixes. Defaults to second if not provided, so "60" is a minute
// as the timeout settings of the ftp client always were.
func ParseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}
	var period float64
	for _, suffix := range durationSuffixes {
		if strings.HasSuffix(s, suffix.Suffix) {
			numberString := s[:len(s)-len(suffix.Suffix)]
			period, err = strconv.ParseFloat(numberString, 64)
			if err != nil {
				return 0, err
			}
			period *= float64(suffix.Multiplier)
			break
		}
	}
	return time.Duration(period), nil
}

// Set a Duration
func (d *Duration) Set(s string) error {
	duration, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// Type of the value
func (d Duration) Type() string {
	return "Duration"
}

// Scan implements the fmt.Scanner interface
func (d *Duration) Scan(s fmt.ScanState, ch rune) error {
	token, err := s.Token(true, nil)
	if err != nil {
		return err
	}
	return d.Set(string(token))
}
