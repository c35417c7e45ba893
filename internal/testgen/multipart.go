package testgen

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
)

// Multipart builds a multipart/form-data request body.
type Multipart struct {
	t   *testing.T
	buf *bytes.Buffer
	w   *multipart.Writer
}

func NewMultipart(t *testing.T) *Multipart {
	t.Helper()
	buf := &bytes.Buffer{}
	return &Multipart{t: t, buf: buf, w: multipart.NewWriter(buf)}
}

func (m *Multipart) Field(name, value string) *Multipart {
	m.t.Helper()
	if err := m.w.WriteField(name, value); err != nil {
		m.t.Fatalf("failed to write field %s: %v", name, err)
	}
	return m
}

// File adds a file part. The part's Content-Type is left generic so that the
// server has to sniff the content.
func (m *Multipart) File(name, filename string, data []byte) *Multipart {
	m.t.Helper()
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+name+`"; filename="`+filename+`"`)
	h.Set("Content-Type", "application/octet-stream")
	part, err := m.w.CreatePart(h)
	if err != nil {
		m.t.Fatalf("failed to create part %s: %v", name, err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		m.t.Fatalf("failed to write part %s: %v", name, err)
	}
	return m
}

// Request closes the body and returns a request carrying it.
func (m *Multipart) Request(method, target string) *http.Request {
	m.t.Helper()
	if err := m.w.Close(); err != nil {
		m.t.Fatalf("failed to close multipart writer: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(m.buf.Bytes()))
	req.Header.Set("Content-Type", m.w.FormDataContentType())
	return req
}
