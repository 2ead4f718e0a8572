// Package inventory loads cluster definition files.
//
// A cluster file is an INI document with one section per host and a reserved
// [Page] section carrying the page title and an optional note:
//
//	[Page]
//	title = Rack A
//	note  = lab machines
//
//	[node01]
//	ip        = 10.0.0.11
//	ipmi_ip   = 10.0.1.11
//	ipmi_user = admin
//	ipmi_pass = secret
//	if_type   = lanplus
//	disabled  = false
//	power_method = dcmi
package inventory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
)

const (
	pageSection        = "Page"
	defaultTitle       = "Somewhere"
	DefaultPowerMethod = "dcmi"
)

// Host is a single managed machine. Immutable once loaded.
type Host struct {
	Name        string `ini:"-" validate:"required"`
	IP          string `ini:"ip" validate:"required"`
	MgmtAddr    string `ini:"ipmi_ip" validate:"required"`
	MgmtUser    string `ini:"ipmi_user" validate:"required"`
	MgmtPass    string `ini:"ipmi_pass" validate:"required"`
	IfType      string `ini:"if_type" validate:"required,oneof=lan lanplus redfish"`
	Note        string `ini:"note"`
	Disabled    bool   `ini:"disabled"`
	PowerMethod string `ini:"power_method" validate:"oneof=dcmi sensor"`
}

// MgmtURL returns the browser URL of the host's management interface.
func (h Host) MgmtURL() string {
	return "https://" + h.MgmtAddr
}

// Cluster is the parsed content of one cluster file.
type Cluster struct {
	File  string
	Title string
	Note  string
	Hosts []Host
}

// Key returns a URL-safe identifier derived from the file name stem.
func (c Cluster) Key() string {
	return StemKey(c.File)
}

// HostNames returns the host names in file order.
func (c Cluster) HostNames() []string {
	names := make([]string, len(c.Hosts))
	for i, h := range c.Hosts {
		names[i] = h.Name
	}
	return names
}

// ConfigError reports a missing or malformed cluster file or field.
// It is fatal to the page load: no partial host list is returned with it.
type ConfigError struct {
	File    string
	Section string
	Field   string
	Reason  string
	Err     error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("cluster file ")
	b.WriteString(e.File)
	if e.Section != "" {
		b.WriteString(" [" + e.Section + "]")
	}
	if e.Field != "" {
		b.WriteString(" " + e.Field)
	}
	b.WriteString(": " + e.Reason)
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// StemKey turns a file path into a URL-safe key: the file name without
// extension, with every run of unsafe characters replaced by "_".
func StemKey(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return unsafeKeyChars.ReplaceAllString(stem, "_")
}

// Load parses and validates a single cluster file.
func Load(path string) (*Cluster, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &ConfigError{File: path, Reason: "file not found", Err: err}
	}

	f, err := ini.LoadSources(ini.LoadOptions{InsensitiveKeys: true}, path)
	if err != nil {
		return nil, &ConfigError{File: path, Reason: "malformed file", Err: err}
	}
	return parse(path, f)
}

// Parse parses cluster file content held in memory. name stands in for the
// file path in errors and in Key.
func Parse(name string, data []byte) (*Cluster, error) {
	f, err := ini.LoadSources(ini.LoadOptions{InsensitiveKeys: true}, data)
	if err != nil {
		return nil, &ConfigError{File: name, Reason: "malformed file", Err: err}
	}
	return parse(name, f)
}

func parse(path string, f *ini.File) (*Cluster, error) {
	c := &Cluster{File: path, Title: defaultTitle}

	for _, sec := range f.Sections() {
		name := sec.Name()
		switch name {
		case ini.DefaultSection:
			continue
		case pageSection:
			if k, err := sec.GetKey("title"); err == nil && k.String() != "" {
				c.Title = k.String()
			}
			if k, err := sec.GetKey("note"); err == nil {
				c.Note = k.String()
			}
			continue
		}

		h := Host{Name: name, PowerMethod: DefaultPowerMethod}
		if err := sec.StrictMapTo(&h); err != nil {
			return nil, &ConfigError{File: path, Section: name, Reason: "malformed value", Err: err}
		}
		h.Name = name
		if h.PowerMethod == "" {
			h.PowerMethod = DefaultPowerMethod
		}
		if err := validateHost(h); err != nil {
			var fe *fieldError
			if errors.As(err, &fe) {
				return nil, &ConfigError{File: path, Section: name, Field: fe.field, Reason: fe.reason, Err: err}
			}
			return nil, &ConfigError{File: path, Section: name, Reason: "invalid host", Err: err}
		}
		c.Hosts = append(c.Hosts, h)
	}
	return c, nil
}

// Discover returns the *.ini files in dir sorted by name.
func Discover(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.ini"))
	if err != nil {
		return nil, fmt.Errorf("discover cluster files: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadResult pairs a cluster file with its parse outcome.
type LoadResult struct {
	File    string
	Cluster *Cluster
	Err     error
}

// LoadDir loads every cluster file in dir. Files that fail to load are
// reported individually so other clusters remain usable.
func LoadDir(dir string) ([]LoadResult, error) {
	paths, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	results := make([]LoadResult, 0, len(paths))
	for _, p := range paths {
		c, err := Load(p)
		results = append(results, LoadResult{File: p, Cluster: c, Err: err})
	}
	return results, nil
}
