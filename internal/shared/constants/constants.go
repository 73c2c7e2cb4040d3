package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// DefaultProfilesURL is the published Mozilla server-side TLS document.
	DefaultProfilesURL = "https://statics.tls.security.mozilla.org/server-side-tls-conf-5.0.json"
	// DefaultProfile is used when no profile is given on the command line.
	DefaultProfile = "intermediate"
	// DefaultTLSPort is assumed for targets without an explicit port.
	DefaultTLSPort = 443
	// MaxProfileDocumentBytes caps how much of the profile document we read.
	MaxProfileDocumentBytes = 4 << 20
)

const (
	// DefaultAuditTimeout bounds a whole single-target audit.
	DefaultAuditTimeout = 5 * time.Minute
	// DefaultProbeTimeout bounds each individual probe within an audit.
	DefaultProbeTimeout = 30 * time.Second
	// MinSCTCount is the number of embedded SCTs a leaf certificate must carry.
	MinSCTCount = 2
)
