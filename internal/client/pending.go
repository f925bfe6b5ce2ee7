package client

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// PendingCall is the handle for a tool call running in the background.
// Result blocks until the call finishes; Cancel aborts the in-flight request.
type PendingCall struct {
	done   chan struct{}
	cancel context.CancelFunc

	result *mcp.CallToolResult
	err    error
}

// CallToolAsync starts CallTool in a goroutine and returns immediately.
// The call inherits cancellation from ctx and can additionally be aborted
// through the returned handle.
func (c *Client) CallToolAsync(
	ctx context.Context,
	tool string,
	server string,
	args map[string]any,
) *PendingCall {
	callCtx, cancel := context.WithCancel(ctx)

	p := &PendingCall{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(p.done)
		defer cancel()
		p.result, p.err = c.CallTool(callCtx, tool, server, args)
	}()

	return p
}

// Done returns a channel closed when the call has finished.
func (p *PendingCall) Done() <-chan struct{} {
	return p.done
}

// Result blocks until the call finishes and returns its outcome.
// It is safe to call from multiple goroutines and after Done is closed.
func (p *PendingCall) Result() (*mcp.CallToolResult, error) {
	<-p.done
	return p.result, p.err
}

// Cancel aborts the in-flight call. The call still finishes, typically with
// a transport error, and Result unblocks.
func (p *PendingCall) Cancel() {
	p.cancel()
}
