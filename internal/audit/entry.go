package audit

// Events recorded per processed archive.
const (
	// EventRewrite marks one guarded method spliced during a run.
	EventRewrite = "rewrite"
	// EventUnchanged marks a run that found nothing to guard.
	EventUnchanged = "unchanged"
	// EventFailure marks a run aborted by a structural error.
	EventFailure = "failure"
)

// Entry is one line in the hash-chained JSONL audit log.
// All fields are flat strings (no map[string]any) to guarantee
// deterministic json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp     string `json:"ts"`
	Event         string `json:"event"`
	Archive       string `json:"archive"`
	Method        string `json:"method,omitempty"`
	CheckFunction string `json:"check_function,omitempty"`
	Mode          string `json:"mode,omitempty"`
	Detail        string `json:"detail,omitempty"`
	PrevHash      string `json:"prev_hash"`
}
