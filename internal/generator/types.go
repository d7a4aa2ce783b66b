package generator

// Execution-time categories, ordered from cheapest to most expensive. The
// strings are part of the response payload and must not change.
const (
	TimeFast     = "Fast (less than a second)"
	TimeModerate = "Moderate (a few seconds)"
	TimeSlow     = "Slow (several seconds to a minute)"
	TimeVerySlow = "Very Slow (may take minutes or more)"
	TimeNA       = "N/A"
)

// Markers rewritten into SQL fences of the assistant response. Each appears
// as the first line inside the original fence.
const (
	RejectedMarker = "-- Rejected due to unsafe SQL operation."
	FailedMarker   = "-- FAILED TO RUN"
)

// apologyText is appended to the assistant response when at least one block
// could not be repaired.
const apologyText = "\n\nSorry, it seems that I can't get an answer to your question. " +
	"The generated SQL failed to run against the database. " +
	"Please try rephrasing your question."

// ParsedQuery is one SQL block extracted from model output, annotated after
// validation settles. Complexity and the time estimate are zero/N/A for
// rejected and failed blocks.
type ParsedQuery struct {
	Title                 string `json:"title"`
	SQL                   string `json:"sql"`
	Complexity            int    `json:"complexity"`
	ExecutionTimeEstimate string `json:"execution_time_estimate"`
}

// Result is the structured outcome of one generation request.
type Result struct {
	AssistantResponse string        `json:"assistant_response"`
	Queries           []ParsedQuery `json:"queries"`
}

// Request is one inbound chat request.
type Request struct {
	Messages     []RequestMessage `json:"messages"`
	SystemPrompt string           `json:"system_prompt,omitempty"`
	DisableRAG   bool             `json:"disable_schema_rag,omitempty"`
}

// RequestMessage is one conversation turn of a Request.
type RequestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Validate checks the request shape and collects every problem found.
func (r *Request) Validate() []string {
	var details []string
	if len(r.Messages) == 0 {
		details = append(details, "messages must not be empty")
	}
	for _, msg := range r.Messages {
		if msg.Content == "" {
			details = append(details, "message content must not be empty")
		}
		if msg.Role != "user" && msg.Role != "assistant" {
			details = append(details, "message role must be 'user' or 'assistant'")
		}
	}
	return details
}
