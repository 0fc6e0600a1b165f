package broker

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"relay/internal/domain"
)

// Registration describes one brokerage integration: how to build its
// adapter, how to convert signals for it, and the catalog metadata the
// dashboard layer renders credential forms from.
type Registration struct {
	Name           domain.BrokerName
	DisplayName    string
	Description    string
	AuthType       string // "oauth", "apikey" or "none"
	RequiredFields []string
	Features       []string

	New     func(creds Credentials, opts Options) Adapter
	Convert Converter
}

var (
	registry     = make(map[domain.BrokerName]Registration)
	registryLock sync.RWMutex
)

// Register adds a brokerage integration to the registry. Adding a broker
// means registering one entry; nothing else in the router changes.
func Register(reg Registration) {
	registryLock.Lock()
	defer registryLock.Unlock()
	registry[reg.Name] = reg
}

// Lookup returns the registration for a broker tag.
func Lookup(name domain.BrokerName) (Registration, error) {
	registryLock.RLock()
	reg, ok := registry[name]
	registryLock.RUnlock()
	if !ok {
		return Registration{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedBroker, name)
	}
	return reg, nil
}

// Supported returns the catalog of registered brokers sorted by name.
// Pure data for form rendering, not decision logic.
func Supported() []Registration {
	registryLock.RLock()
	defer registryLock.RUnlock()

	regs := make([]Registration, 0, len(registry))
	for _, reg := range registry {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].Name < regs[j].Name })
	return regs
}

// Validity is the structured result of a credential-shape check.
type Validity struct {
	Valid         bool     `json:"valid"`
	Error         string   `json:"error,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

// ValidateCredentials checks that every field the catalog marks required
// for the broker is present. It never returns an error; unknown brokers
// yield an invalid result.
func ValidateCredentials(name domain.BrokerName, creds map[string]string) Validity {
	registryLock.RLock()
	reg, ok := registry[name]
	registryLock.RUnlock()
	if !ok {
		return Validity{Valid: false, Error: fmt.Sprintf("unsupported broker: %s", name)}
	}

	var missing []string
	for _, field := range reg.RequiredFields {
		if strings.TrimSpace(creds[field]) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return Validity{
			Valid:         false,
			Error:         fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")),
			MissingFields: missing,
		}
	}
	return Validity{Valid: true}
}
