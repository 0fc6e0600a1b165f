package broker

import (
	"errors"
	"sort"
	"testing"

	"relay/internal/domain"
)

func TestRegisterAndLookup(t *testing.T) {
	reg := Registration{
		Name:           "testbroker",
		DisplayName:    "Test Broker",
		AuthType:       "apikey",
		RequiredFields: []string{"apiKey", "apiSecret"},
	}
	Register(reg)

	got, err := Lookup("testbroker")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.DisplayName != "Test Broker" || got.AuthType != "apikey" {
		t.Errorf("lookup returned %+v", got)
	}
}

func TestLookupUnknownBroker(t *testing.T) {
	_, err := Lookup("nosuchbroker")
	if !errors.Is(err, domain.ErrUnsupportedBroker) {
		t.Fatalf("want ErrUnsupportedBroker, got %v", err)
	}
}

func TestSupportedSortedByName(t *testing.T) {
	Register(Registration{Name: "zzz-last"})
	Register(Registration{Name: "aaa-first"})

	regs := Supported()
	if len(regs) < 2 {
		t.Fatalf("expected at least 2 registrations, got %d", len(regs))
	}
	sorted := sort.SliceIsSorted(regs, func(i, j int) bool {
		return regs[i].Name < regs[j].Name
	})
	if !sorted {
		t.Error("Supported() not sorted by name")
	}
}

func TestValidateCredentials(t *testing.T) {
	Register(Registration{
		Name:           "credbroker",
		RequiredFields: []string{"apiKey", "accessToken"},
	})

	tests := []struct {
		name    string
		broker  domain.BrokerName
		creds   map[string]string
		valid   bool
		missing []string
	}{
		{
			name:   "all present",
			broker: "credbroker",
			creds:  map[string]string{"apiKey": "k", "accessToken": "t"},
			valid:  true,
		},
		{
			name:    "missing one",
			broker:  "credbroker",
			creds:   map[string]string{"apiKey": "k"},
			missing: []string{"accessToken"},
		},
		{
			name:    "blank counts as missing",
			broker:  "credbroker",
			creds:   map[string]string{"apiKey": "  ", "accessToken": "t"},
			missing: []string{"apiKey"},
		},
		{
			name:   "unknown broker",
			broker: "nosuchbroker",
			creds:  map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValidateCredentials(tt.broker, tt.creds)
			if v.Valid != tt.valid {
				t.Errorf("valid = %v, want %v (%s)", v.Valid, tt.valid, v.Error)
			}
			if len(v.MissingFields) != len(tt.missing) {
				t.Fatalf("missing = %v, want %v", v.MissingFields, tt.missing)
			}
			for i := range tt.missing {
				if v.MissingFields[i] != tt.missing[i] {
					t.Errorf("missing[%d] = %s, want %s", i, v.MissingFields[i], tt.missing[i])
				}
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   domain.ErrorType
	}{
		{401, domain.ErrorTypeAuth},
		{403, domain.ErrorTypeAuth},
		{429, domain.ErrorTypeNetwork},
		{500, domain.ErrorTypeNetwork},
		{503, domain.ErrorTypeNetwork},
		{400, domain.ErrorTypeBrokerRejection},
		{422, domain.ErrorTypeBrokerRejection},
	}
	for _, tt := range tests {
		if got := ClassifyStatus(tt.status, "msg"); got.Type != tt.want {
			t.Errorf("ClassifyStatus(%d) = %s, want %s", tt.status, got.Type, tt.want)
		}
	}
}
