package engine

// Event is an element of a summarization stream. The stream carries any
// number of PartialEvents followed by exactly one DoneEvent or ErrorEvent.
type Event interface {
	isEvent()
}

// PartialEvent carries the cumulative text generated so far.
type PartialEvent struct {
	Text string
}

// DoneEvent carries the final, whitespace trimmed text.
type DoneEvent struct {
	Text string
}

// ErrorEvent carries the failure that ended the stream.
type ErrorEvent struct {
	Err error
}

func (PartialEvent) isEvent() {}
func (DoneEvent) isEvent()    {}
func (ErrorEvent) isEvent()   {}
