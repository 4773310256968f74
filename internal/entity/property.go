package entity

import "time"

// Property represents one deployed SPA version described by a manifest file.
// It is immutable once scanned; a new deployment of the same path produces a
// new Property that replaces the old one in the resolution index.
type Property struct {
	Name        string    // Display identifier of the property
	Path        string    // Normalized URL path prefix this property owns (e.g. /foo)
	Ref         string    // Version/tag identifier of the deployed content
	Single      bool      // SPA flag: unmatched sub-paths fall back to index.html
	DeployKey   string    // Opaque credential recorded for the deployment, not used in routing
	RootDir     string    // Directory holding this version's assets (where the manifest lives)
	Description string    // HTML rendered from the optional description markdown, may be empty
	ScannedAt   time.Time // Time this version was picked up by a scan
}

// DeployRecord is one observed index change: a property path started serving
// a new ref.
type DeployRecord struct {
	Path string
	Ref  string
	At   time.Time
}
