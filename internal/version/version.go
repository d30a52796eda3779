// Package version handles the engine's own semantic version: rendering the
// User-Agent string and checking a loaded config.Config's MinEngineVersion
// constraint, the same way the teacher's internal/packagemanager resolves a
// dependency's version constraint (github.com/Masterminds/semver/v3,
// *semver.Constraints.Check(*semver.Version)) before calling a registry
// Find good.
package version

import "github.com/Masterminds/semver/v3"

// Engine is the running build's own version, set at link time via
// -ldflags "-X github.com/pubnub/pntx/internal/version.Engine=1.4.0" in
// release builds; it defaults to a development placeholder otherwise.
var Engine = "0.0.0-dev"

// UserAgent renders the User-Agent header value TX_FIN_HEAD sends,
// "PubNub-Go-Engine/<version>".
func UserAgent() string {
	return "PubNub-Go-Engine/" + Engine
}

// Parsed returns the running engine version as a *semver.Version.
func Parsed() (*semver.Version, error) {
	return semver.NewVersion(Engine)
}

// SatisfiesMin reports whether the running engine version satisfies a
// MinEngineVersion constraint string (e.g. ">= 1.2.0"), as config.Load
// calls before accepting a loaded Config. An empty constraint is always
// satisfied.
func SatisfiesMin(constraint string) (bool, error) {
	if constraint == "" {
		return true, nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, err
	}
	v, err := Parsed()
	if err != nil {
		return false, err
	}
	return c.Check(v), nil
}
