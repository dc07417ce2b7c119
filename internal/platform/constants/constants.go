// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire engine.

It defines default timeouts, rate limits, file-name patterns and cross-cutting
keys that are shared between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the local API server.
  - Library: Image extensions, batch sizes, schema version and file-name layouts.
  - Sites: Endpoints and cookie names used by the metadata fetchers.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "happypanda"
	AppVersion = "1.1.0"

	// RestartExitCode asks the supervising launcher to start the process again.
	RestartExitCode = -123456789
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight work to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// WriteRateLimitRPS bounds queue mutations (POST, DELETE) per client.
	WriteRateLimitRPS = 2.0

	// WriteRateLimitBurst lets a client paste a handful of URLs at once.
	WriteRateLimitBurst = 10

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Library

const (
	// DBVersion is the schema generation written into every series row.
	DBVersion = 0.22

	// LegacyDBVersion is the last schema generation that needs the legacy migration.
	LegacyDBVersion = 0.21

	// DefaultPriority is the command queue priority used when callers do not pick one.
	DefaultPriority = 999

	// BackgroundPriority queues watcher, fetch and maintenance commands behind interactive ones.
	BackgroundPriority = 2000

	// DefaultLoadBatch is the page size of the startup gallery load.
	DefaultLoadBatch = 500

	// DefaultHashSample is the number of pages sampled per chapter for identity hashes.
	DefaultHashSample = 4

	// HashChunkSize is the read size used when hashing page bytes.
	HashChunkSize = 8 * 1024

	// GalleryImageRatio is the minimum share of image files for a directory to be a gallery.
	GalleryImageRatio = 0.8

	// BackupLayout names the pre-migration database backup (happypanda-{YYYY-MM-DD}.hpdb).
	BackupLayout = "2006-01-02"

	// ExportLayout names export snapshots (happypanda-{YYYY-MM-DD HH-MM-SS}.hpdb).
	ExportLayout = "2006-01-02 15-04-05"

	// HPDBExtension is the extension of backups and export snapshots.
	HPDBExtension = ".hpdb"

	// DebugLogFile is written when the process runs with --debug.
	DebugLogFile = "happypanda_debug.log"

	// CABundleFile is the bundled certificate store looked up next to the executable.
	CABundleFile = "cacert.pem"
)

// ImageExtensions lists the page formats recognised by the scanner.
var ImageExtensions = []string{".jpg", ".bmp", ".png", ".gif", ".jpeg"}

// ZipExtensions are always accepted as archive galleries.
var ZipExtensions = []string{".zip", ".cbz"}

// RarExtensions are accepted only when an unrar tool is configured.
var RarExtensions = []string{".rar", ".cbr"}

// DefaultLanguage is assigned when a gallery name carries no language bracket.
const DefaultLanguage = "English"

// Languages are the bracket values recognised as a gallery language.
var Languages = []string{
	"English", "Japanese", "Chinese", "Korean", "Spanish", "French", "German",
	"Italian", "Portuguese", "Russian", "Polish", "Thai", "Vietnamese",
	"Indonesian", "Dutch", "Hungarian", "Other",
}

// MetafileNames are the sidecar files read next to gallery pages.
var MetafileNames = []string{"info.json", "info.txt"}

// # Sites

const (
	// DefaultWebDelay is the minimum wait between two outbound site requests.
	DefaultWebDelay = 5 * time.Second

	// DefaultMetadataTimeout bounds one metadata request.
	DefaultMetadataTimeout = 30 * time.Second

	// EHBatchLimit is the maximum number of galleries per gdata request.
	EHBatchLimit = 25

	CookieSessionID = "ipb_session_id"
	CookieMemberID  = "ipb_member_id"
	CookiePassHash  = "ipb_pass_hash"
)

// # Downloads

const (
	// DefaultDownloadWorkers is the number of concurrent download workers.
	DefaultDownloadWorkers = 4

	// DownloadBlockSize is the read size of a streamed download; cancellation is checked between blocks.
	DownloadBlockSize = 1024

	// MaxRenameAttempts bounds the "(N)name" collision loop before a file is left as .part.
	MaxRenameAttempts = 100

	// PartSuffix marks a download still being written.
	PartSuffix = ".part"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderXClientName   = "X-Client-Name"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldMeta    = "meta"
	FieldError   = "error"
	FieldCode    = "code"
	FieldStatus  = "status"
	FieldChecks  = "checks"
	FieldVersion = "version"
)

// # Redis Keys (Cache Taxonomy)

const (
	// RedisKeyPrefix namespaces every key the engine writes.
	RedisKeyPrefix = "happypanda"
	// RedisNamespaceMetadata holds fetched records keyed by gallery URL.
	RedisNamespaceMetadata = "metadata"
)
