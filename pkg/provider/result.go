package provider

// ResultKind classifies a completion outcome.
type ResultKind int

const (
	// ResultReply is a successful completion; Text holds the trimmed reply.
	ResultReply ResultKind = iota

	// ResultMissingKey means no API key is configured. No network call
	// was attempted; Text holds a fixed notice.
	ResultMissingKey

	// ResultUpstreamError means the backend answered with a non-2xx
	// status; Text holds a notice naming the status code.
	ResultUpstreamError

	// ResultTransportError covers everything else: network failures,
	// timeouts, malformed response bodies. Text holds a generic notice.
	ResultTransportError
)

// String returns a stable label for logging and metrics.
func (k ResultKind) String() string {
	switch k {
	case ResultReply:
		return "reply"
	case ResultMissingKey:
		return "missing_key"
	case ResultUpstreamError:
		return "upstream_error"
	case ResultTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Result is the outcome of a completion call. Text is always what the
// end user should see: the reply on success, a notice otherwise. An
// empty Text on a ResultReply means the model produced only whitespace.
type Result struct {
	Kind ResultKind
	Text string
}
