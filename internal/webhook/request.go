package webhook

import (
	"bufio"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"
)

type request struct {
	method string
	path   string
	proto  string
	header textproto.MIMEHeader
}

// readHead parses the request line and headers. It stops at the blank line;
// the body, if any, stays in r.
func readHead(r *bufio.Reader, limit *io.LimitedReader) (*request, error) {
	tp := textproto.NewReader(r)

	line, err := tp.ReadLine()
	if err != nil {
		return nil, headError(limit, err)
	}
	parts := strings.Fields(line)
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "HTTP/1.") {
		return nil, fmt.Errorf("%w: request line %q", errMalformed, line)
	}
	path, _, _ := strings.Cut(parts[1], "?")

	header, err := tp.ReadMIMEHeader()
	if err != nil {
		return nil, headError(limit, err)
	}
	return &request{method: parts[0], path: path, proto: parts[2], header: header}, nil
}

func headError(limit *io.LimitedReader, err error) error {
	if limit.N <= 0 {
		return errHeaderTooLarge
	}
	if err == io.EOF {
		return err
	}
	return fmt.Errorf("%w: %w", errMalformed, err)
}

// contentLength returns -1 when the header is absent.
func (r *request) contentLength() (int64, error) {
	values := r.header.Values("Content-Length")
	if len(values) == 0 {
		return -1, nil
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return 0, fmt.Errorf("%w: conflicting Content-Length values", errMalformed)
		}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(values[0]), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: Content-Length %q", errMalformed, values[0])
	}
	return n, nil
}

// jsonContent accepts a missing Content-Type or any application/json variant.
func (r *request) jsonContent() bool {
	ct := r.header.Get("Content-Type")
	if ct == "" {
		return true
	}
	mediaType, _, _ := strings.Cut(ct, ";")
	return strings.EqualFold(strings.TrimSpace(mediaType), "application/json")
}
