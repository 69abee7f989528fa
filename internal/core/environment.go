package core

import "strings"

// Environment is the deployment stage the assistant core runs in.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

func (e Environment) String() string {
	return string(e)
}

// IsProduction reports whether logs should drop to info level and lose the console writer.
func (e Environment) IsProduction() bool {
	return e == Production
}

// ParseEnvironment maps a raw ENVIRONMENT value onto a known stage.
// Unknown or empty values resolve to Development.
func ParseEnvironment(v string) Environment {
	switch Environment(strings.ToLower(strings.TrimSpace(v))) {
	case Production:
		return Production
	case Staging:
		return Staging
	case Testing:
		return Testing
	default:
		return Development
	}
}
