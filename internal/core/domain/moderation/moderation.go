package moderation

// Method identifies which classifier produced a verdict.
type Method string

const (
	MethodPrimary  Method = "primary"
	MethodFallback Method = "fallback"
)

func (m Method) String() string {
	return string(m)
}

// Verdict is the per-call moderation outcome. Both methods are authoritative.
type Verdict struct {
	Flagged    bool     `json:"flagged"`
	Method     Method   `json:"method"`
	Categories []string `json:"categories,omitempty"`
}
