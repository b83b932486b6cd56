package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"halaqa-points-api/pkg/apierror"
	"halaqa-points-api/pkg/response"
)

const sseHeartbeat = 25 * time.Second

type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// openEventStream switches the response to text/event-stream.
func openEventStream(w http.ResponseWriter) (*eventStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.Error(w, apierror.InternalError("streaming not supported"))
		return nil, false
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &eventStream{w: w, flusher: flusher}, true
}

func (s *eventStream) send(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *eventStream) ping() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// latest returns a one-slot channel and a non-blocking send that replaces
// any value the reader has not picked up yet.
func latest[T any]() (chan T, func(T)) {
	ch := make(chan T, 1)
	return ch, func(v T) {
		for {
			select {
			case ch <- v:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	}
}
