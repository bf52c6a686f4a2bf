// Package dist reads the compiler distribution index to discover which
// dated toolchains exist and where their installers live.
package dist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alfredjeanlab/crater/internal/fetch"
	"github.com/alfredjeanlab/crater/internal/model"
)

// DefaultAddr is the public distribution server.
const DefaultAddr = "https://static.rust-lang.org/dist"

// DefaultTriple is the build target used when none is configured.
const DefaultTriple = "x86_64-unknown-linux-gnu"

// ErrBadIndex is returned when the index does not have the expected shape.
var ErrBadIndex = errors.New("malformed distribution index")

// Index mirrors the directory listing published as index.json: a single
// root directory whose child directories are archive dates.
type Index struct {
	Dirs []Dir `json:"ds"`
}

// Dir is a directory entry of the index.
type Dir struct {
	Name     string  `json:"name"`
	Children Listing `json:"children"`
}

// Listing holds the subdirectories and files of a directory.
type Listing struct {
	Dirs  []Dir  `json:"ds"`
	Files []File `json:"fs"`
}

// File is a file entry of the index.
type File struct {
	Name string `json:"name"`
}

// CustomToolchains resolves custom commit builds to their installer URL.
type CustomToolchains interface {
	GetCustomToolchain(ctx context.Context, toolchain string) (*model.CustomToolchain, error)
}

// Client reads the distribution index from an HTTP server or a local
// directory.
type Client struct {
	addr    string
	getter  fetch.Getter
	customs CustomToolchains
}

// New creates a client for addr. addr may be an http(s) URL or a local
// path; an empty addr selects DefaultAddr. customs may be nil, in which
// case custom toolchains cannot be resolved.
func New(addr string, g fetch.Getter, customs CustomToolchains) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Client{addr: strings.TrimRight(addr, "/"), getter: g, customs: customs}
}

func (c *Client) remote() bool {
	return strings.HasPrefix(c.addr, "http://") || strings.HasPrefix(c.addr, "https://")
}

// Index downloads and decodes index.json.
func (c *Client) Index(ctx context.Context) (*Index, error) {
	var idx Index
	if c.remote() {
		if err := fetch.GetJSON(ctx, c.getter, c.addr+"/index.json", &idx); err != nil {
			return nil, fmt.Errorf("download index: %w", err)
		}
		return &idx, nil
	}

	data, err := os.ReadFile(filepath.Join(c.addr, "index.json"))
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return &idx, nil
}

// AvailableToolchains downloads the index and lists the archive dates of
// every release channel.
func (c *Client) AvailableToolchains(ctx context.Context) (model.Channels, error) {
	idx, err := c.Index(ctx)
	if err != nil {
		return model.Channels{}, err
	}
	return ParseChannels(idx)
}

// ParseChannels extracts the sorted archive dates of each channel. A date
// directory belongs to a channel when it holds that channel's manifest file
// ("channel-rust-nightly" and so on).
func ParseChannels(idx *Index) (model.Channels, error) {
	if idx == nil || len(idx.Dirs) != 1 {
		return model.Channels{}, fmt.Errorf("%w: expected exactly one root directory", ErrBadIndex)
	}

	var ch model.Channels
	for _, dir := range idx.Dirs[0].Children.Dirs {
		for _, f := range dir.Children.Files {
			switch f.Name {
			case "channel-rust-nightly":
				ch.Nightly = append(ch.Nightly, dir.Name)
			case "channel-rust-beta":
				ch.Beta = append(ch.Beta, dir.Name)
			case "channel-rust-stable":
				ch.Stable = append(ch.Stable, dir.Name)
			}
		}
	}
	sort.Strings(ch.Nightly)
	sort.Strings(ch.Beta)
	sort.Strings(ch.Stable)
	return ch, nil
}

// InstallerURL returns where the installer for tc on the given target
// triple can be downloaded. Dated toolchains live under their archive date;
// custom builds are looked up by toolchain name.
func (c *Client) InstallerURL(ctx context.Context, tc model.Toolchain, triple string) (string, error) {
	if triple == "" {
		triple = DefaultTriple
	}
	if tc.IsCustom() {
		if c.customs == nil {
			return "", fmt.Errorf("no custom toolchain source for %s", tc)
		}
		custom, err := c.customs.GetCustomToolchain(ctx, tc.String())
		if err != nil {
			return "", fmt.Errorf("look up %s: %w", tc, err)
		}
		return custom.URL, nil
	}
	return fmt.Sprintf("%s/%s/rust-%s-%s.tar.gz", c.addr, tc.Date, tc.Channel, triple), nil
}
