package common

import "fmt"

var (
	ErrManifestParseError           = fmt.Errorf("cannot parse manifest")
	ErrPathNotFoundError            = fmt.Errorf("no property matches path")
	ErrAssetNotFoundError           = fmt.Errorf("asset not found")
	ErrTraversalRejectedError       = fmt.Errorf("path traversal rejected")
	ErrScanProcessHasAlreadyStarted = fmt.Errorf("scan process has already started")
	ErrNoDeploymentsFoundError      = fmt.Errorf("no deployments found")
	ErrIndexNotReadyError           = fmt.Errorf("resolution index is not ready")
)
