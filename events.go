package scangate

import (
	"image"

	"scangate/roster"
)

// Events are the observer hooks of the pipeline. All fields are optional;
// a nil callback is skipped.
//
// Callbacks are not confined to one goroutine: camera scans fire them from
// the dispatch goroutine, manual Submit fires them synchronously on the
// caller's goroutine, and sync outcomes fire from the sync workers.
// Callbacks must return promptly; anything slow belongs on the consumer's
// side of a channel.
type Events struct {
	// OnResolvedScan fires once per accepted, deduplicated scan, after
	// identity resolution and before remote sync.
	OnResolvedScan func(scan roster.ResolvedScan)
	// OnPreviewFrame receives downsampled camera frames.
	OnPreviewFrame func(frame image.Image)
	// OnStatus receives human-readable pipeline status lines. kind groups
	// them for display: "capture", "scan", "sync", "roster", "camera".
	OnStatus func(kind, message string)
	// OnCredentialStatus reports remote connectivity transitions. detail is
	// the spreadsheet title when connected, the failure otherwise.
	OnCredentialStatus func(connected bool, detail string)
}

func (e Events) resolvedScan(scan roster.ResolvedScan) {
	if e.OnResolvedScan != nil {
		e.OnResolvedScan(scan)
	}
}

func (e Events) previewFrame(frame image.Image) {
	if e.OnPreviewFrame != nil {
		e.OnPreviewFrame(frame)
	}
}

func (e Events) status(kind, message string) {
	if e.OnStatus != nil {
		e.OnStatus(kind, message)
	}
}

func (e Events) credentialStatus(connected bool, detail string) {
	if e.OnCredentialStatus != nil {
		e.OnCredentialStatus(connected, detail)
	}
}
