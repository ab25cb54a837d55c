// Package transport implements the three MCP transports: stdio, the legacy
// SSE endpoint pair, and the session-based streamable HTTP endpoint. All of
// them decode bytes into JSON-RPC messages, hand them to the shared router,
// and re-frame the router's output.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"lawmcp/server/internal/jsonrpc"
)

// maxLineBytes bounds one stdio message; full law texts travel the other
// direction, requests stay small.
const maxLineBytes = 4 * 1024 * 1024

// Stdio is the line-delimited transport: one JSON-RPC message per stdin
// line, one response per stdout line. Lines that fail to parse and lines
// over maxLineBytes are dropped silently. Processing is strictly
// serialized, one line handled to completion before the next is read, so
// response order always matches request order.
type Stdio struct {
	router *jsonrpc.Router
	in     io.Reader
	out    io.Writer
}

func NewStdio(router *jsonrpc.Router) *Stdio {
	return &Stdio{router: router, in: os.Stdin, out: os.Stdout}
}

// NewStdioPipe is NewStdio with explicit streams, used by tests.
func NewStdioPipe(router *jsonrpc.Router, in io.Reader, out io.Writer) *Stdio {
	return &Stdio{router: router, in: in, out: out}
}

// Run reads until EOF or context cancellation.
func (s *Stdio) Run(ctx context.Context) error {
	reader := bufio.NewReaderSize(s.in, 64*1024)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := readLine(reader)
		if len(line) > 0 {
			if werr := s.handleLine(ctx, line); werr != nil {
				return werr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (s *Stdio) handleLine(ctx context.Context, line []byte) error {
	req, err := jsonrpc.Decode(line)
	if err != nil {
		// Malformed lines are ignored, never answered.
		return nil
	}

	resp := s.router.Handle(ctx, req)
	if resp == nil {
		return nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil
	}
	_, err = fmt.Fprintf(s.out, "%s\n", data)
	return err
}

// readLine accumulates one newline-terminated line. A line over
// maxLineBytes is discarded through to its newline and returned empty, so
// an oversized message never interrupts the read loop.
func readLine(r *bufio.Reader) ([]byte, error) {
	var buf []byte
	dropping := false
	for {
		chunk, isPrefix, err := r.ReadLine()
		if !dropping {
			buf = append(buf, chunk...)
			if len(buf) > maxLineBytes {
				buf = nil
				dropping = true
			}
		}
		if err != nil {
			return buf, err
		}
		if !isPrefix {
			return buf, nil
		}
	}
}
