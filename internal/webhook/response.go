package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func writeResponse(w io.Writer, status int, extra map[string]string) error {
	payload := response{OK: status == http.StatusOK}
	if !payload.OK {
		payload.Error = strings.ToLower(http.StatusText(status))
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	b.WriteString("Content-Type: application/json\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	for k, v := range extra {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	b.WriteString("Connection: close\r\n\r\n")
	b.Write(body)

	_, err = io.WriteString(w, b.String())
	return err
}
