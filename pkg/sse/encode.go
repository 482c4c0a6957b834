package sse

import (
	"strconv"
	"strings"
)

var (
	dataPrefix  = []byte("data: ")
	doneEncoded = []byte("data: " + DonePayload + "\n\n")
)

// Encode returns the wire bytes of e.
func Encode(e Event) []byte {
	return AppendEncode(nil, e)
}

// AppendEncode appends the wire bytes of e to dst.
func AppendEncode(dst []byte, e Event) []byte {
	if e == nil {
		return dst
	}
	return e.appendTo(dst)
}

func (t Text) appendTo(dst []byte) []byte {
	dst = appendData(dst, t.Data)
	return append(dst, '\n')
}

func (Done) appendTo(dst []byte) []byte {
	return append(dst, doneEncoded...)
}

func (e *JSON) appendTo(dst []byte) []byte {
	if e.name != "" {
		dst = append(dst, "event: "...)
		dst = append(dst, e.name...)
		dst = append(dst, '\n')
	}
	if e.id != "" {
		dst = append(dst, "id: "...)
		dst = append(dst, e.id...)
		dst = append(dst, '\n')
	}
	if e.retry >= 0 {
		dst = append(dst, "retry: "...)
		dst = strconv.AppendInt(dst, int64(e.retry), 10)
		dst = append(dst, '\n')
	}
	dst = appendData(dst, string(e.payload))
	return append(dst, '\n')
}

// appendData writes one data field per line of s. CRLF, CR and LF all end
// a line.
func appendData(dst []byte, s string) []byte {
	for {
		i := strings.IndexAny(s, "\r\n")
		if i < 0 {
			break
		}
		dst = append(dst, dataPrefix...)
		dst = append(dst, s[:i]...)
		dst = append(dst, '\n')
		if s[i] == '\r' && i+1 < len(s) && s[i+1] == '\n' {
			i++
		}
		s = s[i+1:]
	}
	dst = append(dst, dataPrefix...)
	dst = append(dst, s...)
	return append(dst, '\n')
}

// Comment returns a comment frame. Clients ignore comments, which makes
// them suitable as keep-alive heartbeats. Line breaks in text start new
// comment lines.
func Comment(text string) []byte {
	var dst []byte
	for {
		i := strings.IndexAny(text, "\r\n")
		if i < 0 {
			break
		}
		dst = append(dst, ": "...)
		dst = append(dst, text[:i]...)
		dst = append(dst, '\n')
		if text[i] == '\r' && i+1 < len(text) && text[i+1] == '\n' {
			i++
		}
		text = text[i+1:]
	}
	dst = append(dst, ": "...)
	dst = append(dst, text...)
	return append(dst, '\n', '\n')
}
