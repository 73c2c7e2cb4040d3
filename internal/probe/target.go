package probe

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/khanhnv2901/tlsprofiler/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/tlsprofiler/internal/shared/errors"
)

// Target is a TLS endpoint to audit.
type Target struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ParseTarget accepts "host", "host:port", "[v6]:port" or an https URL.
// The port defaults to 443.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, sharedErrors.ErrEmptyTarget
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %s: %v", sharedErrors.ErrInvalidTarget, raw, err)
		}
		if u.Scheme != "https" {
			return Target{}, fmt.Errorf("%w: %s: only https URLs can be audited", sharedErrors.ErrInvalidTarget, raw)
		}
		raw = u.Host
	}

	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		// no port given
		host = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
		portStr = strconv.Itoa(constants.DefaultTLSPort)
	}

	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" || strings.ContainsAny(host, " /\\@") {
		return Target{}, fmt.Errorf("%w: %q", sharedErrors.ErrInvalidTarget, raw)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Target{}, fmt.Errorf("%w: invalid port %q", sharedErrors.ErrInvalidTarget, portStr)
	}

	return Target{Host: host, Port: port}, nil
}

// Addr returns the dialable host:port form.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) String() string {
	return t.Addr()
}
