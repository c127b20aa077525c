package images

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// buildMessage is one line of the engine's streamed build output.
type buildMessage struct {
	Stream      string `json:"stream,omitempty"`
	Status      string `json:"status,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorDetail *struct {
		Message string `json:"message,omitempty"`
	} `json:"errorDetail,omitempty"`
	Aux json.RawMessage `json:"aux,omitempty"`
}

// drainBuildOutput copies the engine's JSON build stream into the build
// log as plain text. The first step that fails aborts the build, so an
// error message in the stream terminates the drain.
func drainBuildOutput(body io.Reader, logw io.Writer) (string, error) {
	var imageID string

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg buildMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			// Pass unparseable lines through verbatim.
			fmt.Fprintln(logw, string(line))
			continue
		}

		if msg.Stream != "" {
			io.WriteString(logw, msg.Stream)
		}
		if msg.Status != "" {
			fmt.Fprintln(logw, msg.Status)
		}
		if len(msg.Aux) > 0 {
			var aux struct {
				ID string `json:"ID"`
			}
			if err := json.Unmarshal(msg.Aux, &aux); err == nil && aux.ID != "" {
				imageID = aux.ID
			}
		}
		if msg.Error != "" {
			errMsg := msg.Error
			if msg.ErrorDetail != nil && msg.ErrorDetail.Message != "" {
				errMsg = msg.ErrorDetail.Message
			}
			fmt.Fprintln(logw, "ERROR: "+errMsg)
			return imageID, fmt.Errorf("build step failed: %s", strings.TrimSpace(errMsg))
		}
	}
	if err := scanner.Err(); err != nil {
		return imageID, fmt.Errorf("read build output: %w", err)
	}

	return imageID, nil
}
