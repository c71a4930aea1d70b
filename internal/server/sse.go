package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/trendyard/internal/event"
	"github.com/zulandar/trendyard/internal/session"
)

// stream writes run events as SSE. Headers go out with the first event, so a
// run that fails before emitting anything can still answer with a plain
// JSON error and status code.
type stream struct {
	c       *gin.Context
	started bool
}

func (s *stream) open() {
	h := s.c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.c.Status(http.StatusOK)
	s.started = true
}

// send is a session.Sink. It stops the run once the client has gone.
func (s *stream) send(ev event.Event) error {
	if err := s.c.Request.Context().Err(); err != nil {
		return err
	}
	data, err := event.Marshal(ev)
	if err != nil {
		return err
	}
	if !s.started {
		s.open()
	}
	writeSSE(s.c.Writer, "message", data)
	s.c.Writer.Flush()
	return nil
}

// finish reports the outcome of a run.
func (s *stream) finish(err error) {
	if err == nil {
		return
	}
	if !s.started {
		writeError(s.c, err)
		return
	}
	if s.c.Request.Context().Err() != nil {
		return
	}
	data, mErr := event.Marshal(event.Error{Message: err.Error()})
	if mErr != nil {
		return
	}
	writeSSE(s.c.Writer, "error", data)
	s.c.Writer.Flush()
}

// writeSSE writes a single SSE frame. data must already be JSON.
func writeSSE(w io.Writer, name string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

// writeError answers with the status that matches err.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrInvalidArgument):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
