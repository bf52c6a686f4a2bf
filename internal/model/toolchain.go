package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the layout of toolchain archive dates.
const DateLayout = "2006-01-02"

// ErrInvalidToolchain is returned when a toolchain identifier cannot be parsed.
var ErrInvalidToolchain = errors.New("invalid toolchain")

// Channel is a release channel of the compiler.
type Channel string

const (
	ChannelNightly Channel = "nightly"
	ChannelBeta    Channel = "beta"
	ChannelStable  Channel = "stable"
	ChannelCustom  Channel = "custom"
)

// ReleaseChannels lists the dated channels in release-train order.
var ReleaseChannels = []Channel{ChannelNightly, ChannelBeta, ChannelStable}

// IsValid checks whether the channel is a known value.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelNightly, ChannelBeta, ChannelStable, ChannelCustom:
		return true
	}
	return false
}

var commitPattern = regexp.MustCompile(`^[0-9a-f]{7,40}$`)

// Toolchain identifies a compiler build: either a dated channel release
// ("nightly-2015-03-01") or a custom commit build ("custom-3a2b1c4").
type Toolchain struct {
	Channel Channel `json:"channel"`
	Date    string  `json:"date,omitempty"`
	Commit  string  `json:"commit,omitempty"`
}

// String returns the canonical identifier of the toolchain.
func (t Toolchain) String() string {
	if t.Channel == ChannelCustom {
		return string(ChannelCustom) + "-" + t.Commit
	}
	return string(t.Channel) + "-" + t.Date
}

// IsCustom reports whether the toolchain is a custom commit build.
func (t Toolchain) IsCustom() bool {
	return t.Channel == ChannelCustom
}

// ParseToolchain parses a toolchain identifier.
func ParseToolchain(s string) (Toolchain, error) {
	s = strings.TrimSpace(s)
	channel, rest, ok := strings.Cut(s, "-")
	if !ok || rest == "" {
		return Toolchain{}, fmt.Errorf("%w: %q", ErrInvalidToolchain, s)
	}
	switch Channel(channel) {
	case ChannelNightly, ChannelBeta, ChannelStable:
		if _, err := time.Parse(DateLayout, rest); err != nil {
			return Toolchain{}, fmt.Errorf("%w: bad date in %q", ErrInvalidToolchain, s)
		}
		return Toolchain{Channel: Channel(channel), Date: rest}, nil
	case ChannelCustom:
		if !commitPattern.MatchString(rest) {
			return Toolchain{}, fmt.Errorf("%w: bad commit in %q", ErrInvalidToolchain, s)
		}
		return Toolchain{Channel: ChannelCustom, Commit: rest}, nil
	}
	return Toolchain{}, fmt.Errorf("%w: unknown channel in %q", ErrInvalidToolchain, s)
}

// Channels maps each dated release channel to its ascending list of archive dates.
type Channels struct {
	Nightly []string `json:"nightly"`
	Beta    []string `json:"beta"`
	Stable  []string `json:"stable"`
}

// Dates returns the archive dates of a channel.
func (c Channels) Dates(ch Channel) []string {
	switch ch {
	case ChannelNightly:
		return c.Nightly
	case ChannelBeta:
		return c.Beta
	case ChannelStable:
		return c.Stable
	}
	return nil
}

// LatestBefore returns the newest toolchain of the channel whose date is
// strictly before date, or nil when the channel has no such release.
func (c Channels) LatestBefore(ch Channel, date string) *Toolchain {
	var found *Toolchain
	for _, d := range c.Dates(ch) {
		if d < date && (found == nil || d > found.Date) {
			found = &Toolchain{Channel: ch, Date: d}
		}
	}
	return found
}

// CustomToolchain is a compiler built from a git repository at a given commit.
type CustomToolchain struct {
	Toolchain string `json:"toolchain"`
	URL       string `json:"url"`
	TaskID    string `json:"task_id"`
}

// Environment variables handed to the build worker.
const (
	EnvRustInstaller = "CRATER_RUST_INSTALLER"
	EnvCrateFile     = "CRATER_CRATE_FILE"
)

// BuildTask describes one scheduled build of a package version with a toolchain.
// A worker that has not reported by Deadline is considered lost.
type BuildTask struct {
	TaskID       string            `json:"task_id"`
	Name         string            `json:"name"`
	Toolchain    string            `json:"toolchain"`
	CrateName    string            `json:"crate_name"`
	CrateVers    string            `json:"crate_vers"`
	InstallerURL string            `json:"installer_url"`
	CrateURL     string            `json:"crate_url"`
	Created      time.Time         `json:"created"`
	Deadline     time.Time         `json:"deadline"`
	MaxRunTime   int               `json:"max_run_time"`
	Env          map[string]string `json:"env"`
}
