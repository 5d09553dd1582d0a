// api/schemas/schemas.go
// Shared data model for the harness. Everything here is plain data; the
// behavior lives in the internal packages that consume these types.
package schemas

import "fmt"

// LocatorStrategy identifies how a Locator's value should be interpreted
// by the driver.
type LocatorStrategy string

const (
	StrategyID    LocatorStrategy = "id"
	StrategyCSS   LocatorStrategy = "css"
	StrategyXPath LocatorStrategy = "xpath"
)

// Locator is an immutable description of how to find one or more elements.
// Page objects declare locators once and never mutate them; equality is
// structural (the zero value is not a valid locator).
type Locator struct {
	Strategy LocatorStrategy `json:"strategy"`
	Value    string          `json:"value"`
}

// ByID builds an identifier-based locator.
func ByID(id string) Locator { return Locator{Strategy: StrategyID, Value: id} }

// ByCSS builds a structural-query locator using a CSS selector.
func ByCSS(selector string) Locator { return Locator{Strategy: StrategyCSS, Value: selector} }

// ByXPath builds a structural-query locator using an XPath expression.
func ByXPath(expr string) Locator { return Locator{Strategy: StrategyXPath, Value: expr} }

// IsZero reports whether the locator was never populated.
func (l Locator) IsZero() bool { return l.Strategy == "" && l.Value == "" }

func (l Locator) String() string {
	return fmt.Sprintf("%s=%q", l.Strategy, l.Value)
}

// ElementHandle is a transient reference to a located element. It is valid
// only for the current driver round-trip; callers must re-resolve the
// Locator rather than retain a handle across waits.
type ElementHandle struct {
	// Ref is the driver-specific reference (for the CDP driver, the node's
	// full XPath).
	Ref string `json:"ref"`
}

// Mode selects where a session's browser runs.
type Mode string

const (
	ModeLocal  Mode = "LOCAL"
	ModeRemote Mode = "REMOTE"
)

// ParseMode validates a raw execution-mode value. An empty or unrecognized
// value is a ConfigurationError; the caller must not start any session.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeLocal, ModeRemote:
		return Mode(raw), nil
	case "":
		return "", &Failure{Kind: FailConfiguration, Op: "parse mode", Err: fmt.Errorf("execution mode is not set")}
	default:
		return "", &Failure{Kind: FailConfiguration, Op: "parse mode", Err: fmt.Errorf("unrecognized execution mode %q", raw)}
	}
}

// Visibility is the remote provider's job visibility policy.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityTeam    Visibility = "team"
)

// Capabilities describes the browser a session should run against.
type Capabilities struct {
	BrowserName    string `json:"browser_name" mapstructure:"browser_name"`
	BrowserVersion string `json:"browser_version,omitempty" mapstructure:"browser_version"`
	Headless       bool   `json:"headless" mapstructure:"headless"`
	WindowWidth    int    `json:"window_width,omitempty" mapstructure:"window_width"`
	WindowHeight   int    `json:"window_height,omitempty" mapstructure:"window_height"`
}

// SessionDescriptor is created once per test unit before any driver
// interaction and is immutable afterwards.
type SessionDescriptor struct {
	Mode         Mode         `json:"mode"`
	Capabilities Capabilities `json:"capabilities"`
	DisplayName  string       `json:"display_name"`
	Visibility   Visibility   `json:"visibility"`
}

// CapabilityEnvelope wraps capability options in the provider-specific
// job metadata required to open a remote session.
type CapabilityEnvelope struct {
	Capabilities Capabilities `json:"capabilities"`
	JobName      string       `json:"job_name"`
	Visibility   Visibility   `json:"visibility"`
}
