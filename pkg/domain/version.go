package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a major.minor.patch triple.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// InitialVersion is the version of a project that was never saved.
var InitialVersion = Version{Major: 1}

// ParseVersion is permissive: a bare number is the major version, missing parts
// are zero and non-numeric or negative parts coerce to zero. An empty string is
// InitialVersion.
func ParseVersion(s string) Version {
	s = strings.TrimSpace(s)
	if s == "" {
		return InitialVersion
	}
	parts := strings.Split(s, ".")
	seg := func(i int) int {
		if i >= len(parts) {
			return 0
		}
		return leadingInt(parts[i])
	}
	return Version{Major: seg(0), Minor: seg(1), Patch: seg(2)}
}

// leadingInt parses the leading decimal digits of s, so "3rc1" is 3 and "x" is 0.
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// NextPatch is used by drafts and autosave.
func (v Version) NextPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// NextMinor is used by archive checkpoints.
func (v Version) NextMinor() Version {
	return Version{Major: v.Major, Minor: v.Minor + 1}
}

// NextMajor is used when publishing forks a new lineage.
func (v Version) NextMajor() Version {
	return Version{Major: v.Major + 1}
}

// ordinalBits is the width of each version part inside an Ordinal.
const ordinalBits = 21

// Ordinal maps the version onto an integer that sorts like the version.
// Each part gets 21 bits; larger parts are clamped, so versions beyond
// 2097151 in any part still sort correctly through Compare only.
func (v Version) Ordinal() int64 {
	const limit = 1<<ordinalBits - 1
	part := func(n int) int64 {
		return int64(min(max(n, 0), limit))
	}
	return part(v.Major)<<(2*ordinalBits) | part(v.Minor)<<ordinalBits | part(v.Patch)
}

// Compare returns -1, 0 or 1.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Patch, o.Patch)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// NextPatch parses s and returns the next patch version string.
func NextPatch(s string) string { return ParseVersion(s).NextPatch().String() }

// NextMinor parses s and returns the next minor version string.
func NextMinor(s string) string { return ParseVersion(s).NextMinor().String() }

// NextMajor parses s and returns the next major version string.
func NextMajor(s string) string { return ParseVersion(s).NextMajor().String() }

// CheckpointKind is the granularity of a committed version.
type CheckpointKind string

const (
	// KindPatch is a draft save or autosave.
	KindPatch CheckpointKind = "patch"
	// KindMinor is an explicit archive.
	KindMinor CheckpointKind = "minor"
	// KindMajor is a publish that forks a new lineage.
	KindMajor CheckpointKind = "major"
)

// ParseCheckpointKind accepts kind names and the draft, archive and publish aliases.
func ParseCheckpointKind(s string) (CheckpointKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "patch", "draft":
		return KindPatch, nil
	case "minor", "archive":
		return KindMinor, nil
	case "major", "publish":
		return KindMajor, nil
	}
	return "", &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown checkpoint kind %q", s)}
}

// Bump applies the kind's policy to v.
func (k CheckpointKind) Bump(v Version) Version {
	switch k {
	case KindMinor:
		return v.NextMinor()
	case KindMajor:
		return v.NextMajor()
	default:
		return v.NextPatch()
	}
}

// Status is the project status a checkpoint of this kind records.
func (k CheckpointKind) Status() ProjectStatus {
	switch k {
	case KindMinor:
		return StatusArchived
	case KindMajor:
		return StatusPublished
	default:
		return StatusDraft
	}
}
