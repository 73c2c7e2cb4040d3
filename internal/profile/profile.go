package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/khanhnv2901/tlsprofiler/internal/observation"
	sharedErrors "github.com/khanhnv2901/tlsprofiler/internal/shared/errors"
)

// Profile is one named server-side TLS configuration from the profile
// document. Profiles are never modified after they are parsed.
type Profile struct {
	Name             string                  `json:"name"`
	AllowedProtocols observation.ProtocolSet `json:"allowed_protocols"`
	AllowedCiphers   observation.StringSet   `json:"allowed_ciphers"`
	MinHSTSAge       int64                   `json:"min_hsts_age"`
}

// Document is a parsed profile document.
type Document struct {
	Version  string
	Profiles map[string]Profile
}

// Names returns the profile names in the document, sorted.
func (d *Document) Names() []string {
	names := make([]string, 0, len(d.Profiles))
	for name := range d.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named profile or a *NotFoundError.
func (d *Document) Lookup(name string) (Profile, error) {
	p, ok := d.Profiles[name]
	if !ok {
		return Profile{}, &NotFoundError{Name: name, Available: d.Names()}
	}
	return p, nil
}

type rawDocument struct {
	Version        json.RawMessage            `json:"version"`
	Configurations map[string]json.RawMessage `json:"configurations"`
}

type rawProfile struct {
	TLSVersions         *[]string       `json:"tls_versions"`
	OpenSSLCipherSuites []string        `json:"openssl_ciphersuites"`
	OpenSSLCiphers      []string        `json:"openssl_ciphers"`
	CipherSuites        []string        `json:"ciphersuites"`
	Ciphers             json.RawMessage `json:"ciphers"`
	HSTSMinAge          *json.Number    `json:"hsts_min_age"`
}

// ParseDocument decodes a profile document. The document is fetched from a
// third party, so every required key is checked and missing or malformed
// values are reported as ErrInvalidDocument.
//
// Allowed ciphers are the union of "openssl_ciphersuites" and
// "openssl_ciphers". Documents that publish "ciphersuites" plus a
// "ciphers.openssl" list instead are accepted too.
func ParseDocument(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw rawDocument
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrInvalidDocument, err)
	}
	if raw.Configurations == nil {
		return nil, fmt.Errorf("%w: missing \"configurations\"", sharedErrors.ErrInvalidDocument)
	}

	doc := &Document{
		Version:  parseVersion(raw.Version),
		Profiles: make(map[string]Profile, len(raw.Configurations)),
	}
	for name, body := range raw.Configurations {
		p, err := parseProfile(name, body)
		if err != nil {
			return nil, err
		}
		doc.Profiles[name] = p
	}
	return doc, nil
}

func parseProfile(name string, body json.RawMessage) (Profile, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw rawProfile
	if err := dec.Decode(&raw); err != nil {
		return Profile{}, invalidKey(name, "", err.Error())
	}
	if raw.TLSVersions == nil {
		return Profile{}, invalidKey(name, "tls_versions", "missing")
	}
	if raw.HSTSMinAge == nil {
		return Profile{}, invalidKey(name, "hsts_min_age", "missing")
	}

	minAge, err := strconv.ParseInt(raw.HSTSMinAge.String(), 10, 64)
	if err != nil || minAge < 0 {
		return Profile{}, invalidKey(name, "hsts_min_age", fmt.Sprintf("not a non-negative integer: %s", raw.HSTSMinAge))
	}

	protocols := make(observation.ProtocolSet)
	for _, v := range *raw.TLSVersions {
		p, err := observation.ParseProtocol(v)
		if err != nil {
			return Profile{}, invalidKey(name, "tls_versions", err.Error())
		}
		protocols.Add(p)
	}

	ciphers := observation.NewStringSet(raw.OpenSSLCipherSuites...)
	for _, c := range raw.OpenSSLCiphers {
		ciphers.Add(c)
	}
	if raw.OpenSSLCipherSuites == nil && raw.OpenSSLCiphers == nil {
		for _, c := range raw.CipherSuites {
			ciphers.Add(c)
		}
		var grouped struct {
			OpenSSL []string `json:"openssl"`
		}
		if len(raw.Ciphers) > 0 && json.Unmarshal(raw.Ciphers, &grouped) == nil {
			for _, c := range grouped.OpenSSL {
				ciphers.Add(c)
			}
		}
	}

	return Profile{
		Name:             name,
		AllowedProtocols: protocols,
		AllowedCiphers:   ciphers,
		MinHSTSAge:       minAge,
	}, nil
}

func invalidKey(profile, key, reason string) error {
	if key == "" {
		return fmt.Errorf("%w: profile %q: %s", sharedErrors.ErrInvalidDocument, profile, reason)
	}
	return fmt.Errorf("%w: profile %q: %q %s", sharedErrors.ErrInvalidDocument, profile, key, reason)
}

// parseVersion accepts the version as either a JSON string or number.
func parseVersion(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "unknown"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
