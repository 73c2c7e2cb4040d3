package observation

import (
	"fmt"
	"strings"

	sharedErrors "github.com/khanhnv2901/tlsprofiler/internal/shared/errors"
)

// Protocol is one of the SSL/TLS protocol versions an audit tests for.
// The zero value is not a valid protocol.
type Protocol int

const (
	SSLv2 Protocol = iota + 1
	SSLv3
	TLSv1_0
	TLSv1_1
	TLSv1_2
	TLSv1_3
)

// AllProtocols is the fixed order in which protocol versions are tested.
var AllProtocols = []Protocol{SSLv2, SSLv3, TLSv1_0, TLSv1_1, TLSv1_2, TLSv1_3}

// String returns the identifier used by the Mozilla profile document.
// TLS 1.0 is spelled "TLSv1" there.
func (p Protocol) String() string {
	switch p {
	case SSLv2:
		return "SSLv2"
	case SSLv3:
		return "SSLv3"
	case TLSv1_0:
		return "TLSv1"
	case TLSv1_1:
		return "TLSv1.1"
	case TLSv1_2:
		return "TLSv1.2"
	case TLSv1_3:
		return "TLSv1.3"
	default:
		return fmt.Sprintf("Protocol(%d)", int(p))
	}
}

// Valid reports whether p is one of the known protocol versions.
func (p Protocol) Valid() bool {
	return p >= SSLv2 && p <= TLSv1_3
}

// ParseProtocol maps a profile-document identifier to a Protocol.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.TrimSpace(s) {
	case "SSLv2":
		return SSLv2, nil
	case "SSLv3":
		return SSLv3, nil
	case "TLSv1", "TLSv1.0":
		return TLSv1_0, nil
	case "TLSv1.1":
		return TLSv1_1, nil
	case "TLSv1.2":
		return TLSv1_2, nil
	case "TLSv1.3":
		return TLSv1_3, nil
	}
	return 0, fmt.Errorf("%w: %q", sharedErrors.ErrUnknownProtocol, s)
}

func (p Protocol) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", sharedErrors.ErrUnknownProtocol, int(p))
	}
	return []byte(p.String()), nil
}

func (p *Protocol) UnmarshalText(text []byte) error {
	parsed, err := ParseProtocol(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
