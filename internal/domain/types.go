package domain

// MediaKind classifies a source file by its extension.
type MediaKind string

const (
	MediaKindVideo MediaKind = "video"
	MediaKindAudio MediaKind = "audio"
	MediaKindImage MediaKind = "image"
)

// SourceFile is one discovered input. ID is the file name and is unique
// within the source directory.
type SourceFile struct {
	ID              string    `json:"id"`
	Path            string    `json:"path"`
	Kind            MediaKind `json:"kind"`
	NeedsConversion bool      `json:"needsConversion"`
}

// AudioSegment is one speech-bounded span cut from a source's audio track.
// Ordinal is 1-based and follows the source timeline.
type AudioSegment struct {
	SourceID string `json:"sourceId"`
	Ordinal  int    `json:"ordinal"`
	Path     string `json:"path"`
}

// Outcome is the typed result of transcribing one segment.
type Outcome string

const (
	OutcomeRecognized     Outcome = "recognized"
	OutcomeUnintelligible Outcome = "unintelligible"
	OutcomeServiceError   Outcome = "service_error"
	OutcomeUnexpected     Outcome = "unexpected"
)

// Fragment is the text recognized from one segment. Text is empty for every
// outcome except OutcomeRecognized.
type Fragment struct {
	Ordinal int     `json:"ordinal"`
	Text    string  `json:"text"`
	Outcome Outcome `json:"outcome"`
	Err     error   `json:"-"`
}

// FileState tracks the per-source pipeline state machine.
type FileState string

const (
	FileStateDiscovered      FileState = "discovered"
	FileStateSegmenting      FileState = "segmenting"
	FileStateTranscribing    FileState = "transcribing"
	FileStateAggregating     FileState = "aggregating"
	FileStateCompleted       FileState = "completed"
	FileStateSkipped         FileState = "skipped_already_processed"
	FileStateFailedNoContent FileState = "failed_no_content"
	FileStateFailed          FileState = "failed"
	FileStateIgnored         FileState = "ignored_unsupported_kind"
)

// IsTerminal reports whether no further transitions are allowed.
func (s FileState) IsTerminal() bool {
	switch s {
	case FileStateCompleted, FileStateSkipped, FileStateFailedNoContent, FileStateFailed, FileStateIgnored:
		return true
	default:
		return false
	}
}

// Settings contains runtime configuration for one batch run.
type Settings struct {
	SourceDir                string   `json:"sourceDir"`
	OutputDir                string   `json:"outputDir"`
	WorkingDir               string   `json:"workingDir"`
	LedgerPath               string   `json:"ledgerPath"`
	OutputPrefix             string   `json:"outputPrefix"`
	Extensions               []string `json:"extensions"`
	SilenceMinLenMs          int      `json:"silenceMinLenMs"`
	SilenceThresholdOffsetDb float64  `json:"silenceThresholdOffsetDb"`
	KeepSilenceMs            int      `json:"keepSilenceMs"`
	WorkerPoolSize           int      `json:"workerPoolSize"`
	FFmpegPath               string   `json:"ffmpegPath"`
	Recognizer               string   `json:"recognizer"`
	RecognizerURL            string   `json:"recognizerUrl"`
	RecognizerModel          string   `json:"recognizerModel"`
	APIKey                   string   `json:"apiKey"`
	Language                 string   `json:"language"`
	RequestTimeoutSec        int      `json:"requestTimeoutSec"`
	MaxRetries               int      `json:"maxRetries"`
	LogLevel                 string   `json:"logLevel"`
}

// FileJob is the identity and state of the source currently being processed.
type FileJob struct {
	SourceID string    `json:"sourceId"`
	State    FileState `json:"state"`
}
