package release

// State is the position of one file in the per-run synchronization state machine:
//
//	Pending -> CheckingFreshness -> Skipped
//	                             -> Downloading -> DownloadFailed
//	                                            -> Downloaded -> Extracting -> Extracted | ExtractFailed
//
// A skipped archive may still be extracted.
type State int

// Synchronization states.
const (
	Pending State = iota
	CheckingFreshness
	Skipped
	Downloading
	Downloaded
	DownloadFailed
	Extracting
	Extracted
	ExtractFailed
)

// String returns the lower-case state name used in logs.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case CheckingFreshness:
		return "checking_freshness"
	case Skipped:
		return "skipped"
	case Downloading:
		return "downloading"
	case Downloaded:
		return "downloaded"
	case DownloadFailed:
		return "download_failed"
	case Extracting:
		return "extracting"
	case Extracted:
		return "extracted"
	case ExtractFailed:
		return "extract_failed"
	default:
		return "unknown"
	}
}

// IsFailure reports whether the state is terminal and unsuccessful.
func (s State) IsFailure() bool {
	return s == DownloadFailed || s == ExtractFailed
}

// IsAvailable reports whether the file is on disk after the state was reached.
func (s State) IsAvailable() bool {
	switch s {
	case Skipped, Downloaded, Extracting, Extracted, ExtractFailed:
		return true
	default:
		return false
	}
}

// Kind names the role a file plays inside a release.
type Kind string

// File kinds.
const (
	KindArchive   Kind = "archive"
	KindChecksum  Kind = "checksum"
	KindSignature Kind = "signature"
)

// FileOutcome is the final state of one file handled during a pass.
type FileOutcome struct {
	// Kind is the role of the file in the release.
	Kind Kind
	// FileName is the local file name inside the downloads area.
	FileName string
	// State is the last state reached.
	State State
}

// Outcome collects the file outcomes of one release.
type Outcome struct {
	// Release is the descriptor that was synchronized.
	Release Release
	// Files lists every attempted file in order.
	Files []FileOutcome
}

// OK is the logical AND of every attempted sub-step. Nothing attempted is OK.
func (o *Outcome) OK() bool {
	for _, f := range o.Files {
		if f.State.IsFailure() {
			return false
		}
	}

	return true
}

// Failed returns the names of files whose sub-step failed.
func (o *Outcome) Failed() []string {
	var names []string

	for _, f := range o.Files {
		if f.State.IsFailure() {
			names = append(names, f.FileName)
		}
	}

	return names
}
