package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roasbeef/pagesum/internal/actorutil"
	"github.com/roasbeef/pagesum/internal/baselib/actor"
)

// DefaultExtractTimeout bounds a content extraction.
const DefaultExtractTimeout = 10 * time.Second

// ExtractorKey is the service key of the content extractor actor.
var ExtractorKey = actor.NewServiceKey[ExtractorRequest, ExtractorResponse](
	"extractor",
)

// ErrExtractTimeout is returned when the extractor does not answer in time.
var ErrExtractTimeout = errors.New("content extraction timed out")

// ExtractorRequest is the sealed interface of extractor requests.
type ExtractorRequest interface {
	actor.Message
	isExtractorRequest()
}

// ExtractorResponse is the sealed interface of extractor responses.
type ExtractorResponse interface {
	isExtractorResponse()
}

// ExtractRequest asks for the main content of a page.
type ExtractRequest struct {
	actor.BaseMessage

	URL string `json:"url"`
}

// MessageType implements actor.Message.
func (ExtractRequest) MessageType() string { return TypeExtractMainContent }
func (ExtractRequest) isExtractorRequest() {}

// ExtractResponse carries the page content or the extraction failure.
type ExtractResponse struct {
	Content string `json:"content,omitempty"`
	Title   string `json:"title,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (ExtractResponse) isExtractorResponse() {}

// Page is a successfully extracted page.
type Page struct {
	Content string
	Title   string
}

// ExtractClient asks the extractor actor for page content under a hard
// deadline.
type ExtractClient struct {
	ref     actor.ActorRef[ExtractorRequest, ExtractorResponse]
	timeout time.Duration
}

// NewExtractClient creates a client for ref. A non-positive timeout uses
// DefaultExtractTimeout.
func NewExtractClient(ref actor.ActorRef[ExtractorRequest, ExtractorResponse],
	timeout time.Duration) *ExtractClient {

	if timeout <= 0 {
		timeout = DefaultExtractTimeout
	}

	return &ExtractClient{ref: ref, timeout: timeout}
}

// Extract returns the main content of url. Running out of time yields
// ErrExtractTimeout; it is never retried.
func (c *ExtractClient) Extract(ctx context.Context, url string) (Page, error) {
	var req ExtractorRequest = ExtractRequest{URL: url}
	resp, err := actorutil.AskAwaitTyped[ExtractResponse](
		ctx, c.ref, req, c.timeout,
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return Page{}, ErrExtractTimeout

	case err != nil:
		return Page{}, fmt.Errorf("extract %s: %w", url, err)

	case resp.Error != "":
		return Page{}, errors.New(resp.Error)
	}

	return Page{Content: resp.Content, Title: resp.Title}, nil
}
