package ftp

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rclone/ftpfetch/fs"
)

// Feature is an optional server command
type Feature string

// Features tracked per session
const (
	FeatFEAT Feature = "FEAT"
	FeatMDTM Feature = "MDTM"
	FeatMLST Feature = "MLST"
	FeatREST Feature = "REST STREAM"
	FeatSIZE Feature = "SIZE"
	FeatTVFS Feature = "TVFS"
	FeatUTF8 Feature = "UTF8"
)

var allFeatures = []Feature{FeatFEAT, FeatMDTM, FeatMLST, FeatREST, FeatSIZE, FeatTVFS, FeatUTF8}

// FeatureState is whether the server supports a feature
type FeatureState byte

// FeatureState values
const (
	FeatureUnknown FeatureState = iota
	FeatureSupported
	FeatureUnsupported
)

// String turns a FeatureState into a string
func (f FeatureState) String() string {
	switch f {
	case FeatureSupported:
		return "supported"
	case FeatureUnsupported:
		return "unsupported"
	}
	return "unknown"
}

// Feature returns what is known about the server's support for f
func (s *Session) Feature(f Feature) FeatureState {
	return s.features[f]
}

// setFeature records the server's support for f
func (s *Session) setFeature(f Feature, state FeatureState) {
	s.features[f] = state
}

// unsupported reports whether reply says the command isn't
// implemented at all
func unsupported(reply *Reply) bool {
	return reply.Class() == ClassError && (reply.Code == StatusBadCommand || reply.Code == StatusNotImplemented)
}

// Feat asks the server for its features.
//
// If the server answers every feature it doesn't list becomes
// unsupported.  Nothing calls it during a fetch: it is for an
// interactive client wanting the feature list up front.
func (s *Session) Feat(ctx context.Context) error {
	reply, err := s.Command(ctx, "FEAT")
	if err != nil {
		return err
	}
	if reply.Class() != ClassComplete {
		s.setFeature(FeatFEAT, FeatureUnsupported)
		return nil
	}
	listed := map[Feature]bool{}
	for _, line := range reply.Lines {
		if len(line) == 0 || line[0] != ' ' {
			continue
		}
		feat := strings.ToUpper(strings.TrimSpace(line))
		for _, f := range allFeatures {
			if feat == string(f) || strings.HasPrefix(feat, string(f)+" ") {
				listed[f] = true
			}
		}
	}
	for _, f := range allFeatures {
		if listed[f] {
			s.setFeature(f, FeatureSupported)
		} else {
			s.setFeature(f, FeatureUnsupported)
		}
	}
	s.setFeature(FeatFEAT, FeatureSupported)
	return nil
}

// Size returns the size of a remote file.
//
// It returns ErrUnsupported without asking if the server is known
// not to have SIZE.
func (s *Session) Size(ctx context.Context, name string) (int64, error) {
	if s.Feature(FeatSIZE) == FeatureUnsupported {
		return -1, ErrUnsupported
	}
	reply, err := s.Command(ctx, "SIZE %s", name)
	if err != nil {
		return -1, err
	}
	if reply.Class() != ClassComplete {
		if unsupported(reply) {
			s.setFeature(FeatSIZE, FeatureUnsupported)
			return -1, ErrUnsupported
		}
		return -1, &ReplyError{Cmd: "SIZE", Code: reply.Code, Text: reply.Text()}
	}
	s.setFeature(FeatSIZE, FeatureSupported)
	size, err := strconv.ParseInt(strings.TrimSpace(reply.Text()), 10, 64)
	if err != nil {
		return -1, protocolErrorf("bad SIZE reply %q", reply.String())
	}
	return size, nil
}

// ModTime returns the modification time of a remote file.
//
// It returns ErrUnsupported without asking if the server is known
// not to have MDTM.
func (s *Session) ModTime(ctx context.Context, name string) (time.Time, error) {
	if s.Feature(FeatMDTM) == FeatureUnsupported {
		return time.Time{}, ErrUnsupported
	}
	reply, err := s.Command(ctx, "MDTM %s", name)
	if err != nil {
		return time.Time{}, err
	}
	if reply.Class() != ClassComplete {
		if unsupported(reply) {
			s.setFeature(FeatMDTM, FeatureUnsupported)
			return time.Time{}, ErrUnsupported
		}
		return time.Time{}, &ReplyError{Cmd: "MDTM", Code: reply.Code, Text: reply.Text()}
	}
	s.setFeature(FeatMDTM, FeatureSupported)
	t, fixed, err := parseMDTM(strings.TrimSpace(reply.Text()))
	if err != nil {
		return time.Time{}, err
	}
	if fixed {
		fs.Logf(s, "Y2K warning! Fixed incorrect time-val received from server.")
	}
	return t, nil
}

// parseMDTM parses a YYYYMMDDHHMMSS[.sss] time in UTC.
//
// Some servers send the year as 19 followed by the years since 1900,
// so 2000 becomes 19100.  That is detected and fixed.
func parseMDTM(ts string) (t time.Time, fixed bool, err error) {
	if strings.HasPrefix(ts, "191") && len(ts) >= 15 {
		ts = "20" + ts[3:]
		fixed = true
	}
	layout := "20060102150405"
	if len(ts) > len(layout) && ts[len(layout)] == '.' {
		layout += "." + strings.Repeat("0", len(ts)-len(layout)-1)
	}
	t, err = time.Parse(layout, ts)
	if err != nil {
		return time.Time{}, false, protocolErrorf("bad MDTM time %q", ts)
	}
	return t, fixed, nil
}
