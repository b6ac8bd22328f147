package parser

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/dshills/puppetdoc-mcp/internal/puppet"
)

const (
	// TasksSetting enables plan syntax in the grammar
	TasksSetting = "tasks"

	// DefaultRuntimeVersion is the runtime version assumed when none is configured
	DefaultRuntimeVersion = "8.10.0"

	// PlansMinimumVersion is the first runtime version that supports plans
	PlansMinimumVersion = "5.0.0"
)

var (
	plansMinimum = semver.MustParse(PlansMinimumVersion)
	plansPath    = regexp.MustCompile(`^plans/`)

	// settingKeys are the setting keys that change parse outcomes
	settingKeys = []string{TasksSetting}
)

// Settings is the read-only view of the runtime the parser targets
type Settings interface {
	Version() string
	Includes(key string) bool
}

// Runtime is an immutable set of runtime settings
type Runtime struct {
	version string
	keys    map[string]struct{}
}

// NewRuntime creates runtime settings for version with the given setting keys
func NewRuntime(version string, keys ...string) Runtime {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return Runtime{version: version, keys: set}
}

// DefaultRuntime returns a current runtime with tasks enabled
func DefaultRuntime() Runtime {
	return NewRuntime(DefaultRuntimeVersion, TasksSetting)
}

// Version returns the runtime version string
func (r Runtime) Version() string {
	return r.version
}

// Includes reports whether the setting key is present
func (r Runtime) Includes(key string) bool {
	_, ok := r.keys[key]
	return ok
}

// SettingsFingerprint lists the parse-affecting keys present in s, comma separated.
// Two settings with equal versions and fingerprints parse every file the same way.
func SettingsFingerprint(s Settings) string {
	var present []string
	for _, key := range settingKeys {
		if s.Includes(key) {
			present = append(present, key)
		}
	}
	return strings.Join(present, ",")
}

// grammarOptions derives the grammar feature flags from settings
func grammarOptions(s Settings) puppet.Options {
	return puppet.Options{Tasks: s.Includes(TasksSetting)}
}

// supportsPlans compares the runtime version against PlansMinimumVersion.
// Unparseable versions are treated as supporting plans.
func supportsPlans(s Settings) bool {
	v, err := semver.NewVersion(s.Version())
	if err != nil {
		return true
	}
	return !v.LessThan(plansMinimum)
}

// skipsPlansFile reports whether file must be skipped under settings
func skipsPlansFile(s Settings, file string) bool {
	return plansPath.MatchString(filepath.ToSlash(file)) && !supportsPlans(s)
}
