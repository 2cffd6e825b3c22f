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
	// DefaultTimeout bounds every network probe of an audit.
	DefaultTimeout = 10 * time.Second
	// DefaultTLSPort is used for the direct handshake when the target has no explicit port.
	DefaultTLSPort = 443
	// UserAgent identifies audit requests.
	UserAgent = "WebHardeningAuditor/1.0"
	// MaxRedirects caps redirect chains for the fetch and the redirect probe.
	MaxRedirects = 10
	// BodyDrainLimitBytes caps how much of a response body is read before closing it.
	BodyDrainLimitBytes = 64 * 1024
)

const (
	// StartingScore is the score before any deduction.
	StartingScore = 100
	// GoodScoreThreshold and WarnScoreThreshold classify scores in reports.
	GoodScoreThreshold = 80
	WarnScoreThreshold = 50
)

const (
	// DefaultResultsDir is where reports are written when no directory is configured.
	DefaultResultsDir = "reports"
	// DefaultAPIAddr is the listen address of the serve command.
	DefaultAPIAddr = "127.0.0.1:8080"
	// DefaultStoredAudits bounds the API's in-memory audit history.
	DefaultStoredAudits = 500
	// MaxRequestBodyBytes caps API request bodies.
	MaxRequestBodyBytes = 1 << 20
)
