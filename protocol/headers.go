// File: protocol/headers.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"bytes"
	"strings"
)

type headerField struct {
	key   string
	value string
}

// Header is an ordered list of fields with case-insensitive keys.
// Setting an existing key overwrites its value in place, keeping the
// original position and spelling: last write wins.
type Header struct {
	fields []headerField
}

func (h *Header) find(key string) int {
	for i := range h.fields {
		if strings.EqualFold(h.fields[i].key, key) {
			return i
		}
	}
	return -1
}

// Set stores key: value, overwriting a case-insensitive match.
func (h *Header) Set(key, value string) {
	if i := h.find(key); i >= 0 {
		h.fields[i].value = value
		return
	}
	h.fields = append(h.fields, headerField{key: key, value: value})
}

// Get returns the value for key, empty when absent.
func (h *Header) Get(key string) string {
	if i := h.find(key); i >= 0 {
		return h.fields[i].value
	}
	return ""
}

// Has reports whether key is present.
func (h *Header) Has(key string) bool { return h.find(key) >= 0 }

// Del removes key if present.
func (h *Header) Del(key string) {
	if i := h.find(key); i >= 0 {
		h.fields = append(h.fields[:i], h.fields[i+1:]...)
	}
}

// Len reports the number of fields.
func (h *Header) Len() int { return len(h.fields) }

// Each visits the fields in order.
func (h *Header) Each(fn func(key, value string)) {
	for i := range h.fields {
		fn(h.fields[i].key, h.fields[i].value)
	}
}

// writeTo appends the fields in wire form, without the terminating
// blank line.
func (h *Header) writeTo(b *bytes.Buffer) {
	for i := range h.fields {
		b.WriteString(h.fields[i].key)
		b.WriteString(": ")
		b.WriteString(h.fields[i].value)
		b.WriteString("\r\n")
	}
}
