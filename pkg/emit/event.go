package emit

// Source classifies which subsystem produced an Event.
type Source string

const (
	SourceStep      Source = "step"
	SourceJob       Source = "job"
	SourceDelay     Source = "delay"
	SourceHTTPLoop  Source = "http_loop"
	SourceHIL       Source = "hil"
	SourceResumption Source = "resumption"
	SourceCleanup   Source = "cleanup"
)

// Event is one observability record. Meta carries source-specific
// structured fields (duration_ms, error, retry_count, loop_id, ...).
type Event struct {
	Source      Source
	ExecutionID string
	NodeID      string
	JobID       string
	Msg         string
	Meta        map[string]interface{}
}
