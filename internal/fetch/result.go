package fetch

// Outcome classifies how a fetch ended.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNonSuccess
	OutcomeTimeout
	OutcomeTransportError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNonSuccess:
		return "non_success"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Result is the outcome of a single page fetch. Failures are reported here,
// never as a returned error.
type Result struct {
	URL        string
	Body       string
	StatusCode int
	Outcome    Outcome
	Err        error
}

// HasContent reports whether the page body can be expanded for links.
// Non-success statuses, timeouts, transport errors and empty bodies all count
// as "no content"; callers that need the distinction read Outcome.
func (r Result) HasContent() bool {
	return r.Outcome == OutcomeOK && r.Body != ""
}
