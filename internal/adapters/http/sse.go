package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
)

// streamDeltas writes the turn's delta stream as server-sent events,
// one JSON payload per event, terminated by a [DONE] marker. The
// observe callback sees every delta before it is written.
func streamDeltas(w http.ResponseWriter, deltas <-chan domain.Delta, observe func(domain.Delta)) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming is not supported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for delta := range deltas {
		if observe != nil {
			observe(delta)
		}
		payload, err := json.Marshal(delta)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
	}

	if _, err := io.WriteString(w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
