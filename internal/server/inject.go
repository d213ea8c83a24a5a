package server

import (
	"bytes"
	"net/http"
	"strings"

	"git.home.luguber.info/inful/pagebrew/internal/server/middleware"
)

// ScriptTag is inserted before </body> of served HTML pages.
const ScriptTag = `<script async src="/livereload.js"></script>`

const maxInjectBuffer = 2 << 20

// InjectLiveReload inserts ScriptTag into HTML responses. Responses that are
// not HTML, or larger than the buffer limit, pass through unchanged.
func InjectLiveReload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !middleware.IsHTMLPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		inj := &injector{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(inj, r)
		inj.finish()
	})
}

type injector struct {
	http.ResponseWriter
	status      int
	buf         []byte
	decided     bool
	passthrough bool
	wroteHeader bool
}

func (i *injector) WriteHeader(code int) {
	i.status = code
	if i.passthrough {
		i.writeHeader()
	}
}

func (i *injector) writeHeader() {
	if !i.wroteHeader {
		i.wroteHeader = true
		i.ResponseWriter.WriteHeader(i.status)
	}
}

func (i *injector) decide() {
	if i.decided {
		return
	}
	i.decided = true
	ct := i.Header().Get("Content-Type")
	if i.status != http.StatusOK || (ct != "" && !strings.Contains(ct, "text/html")) {
		i.passthrough = true
		i.writeHeader()
	}
}

func (i *injector) Write(p []byte) (int, error) {
	i.decide()
	if i.passthrough {
		return i.ResponseWriter.Write(p)
	}
	if len(i.buf)+len(p) > maxInjectBuffer {
		i.passthrough = true
		i.writeHeader()
		if len(i.buf) > 0 {
			if _, err := i.ResponseWriter.Write(i.buf); err != nil {
				return 0, err
			}
			i.buf = nil
		}
		return i.ResponseWriter.Write(p)
	}
	i.buf = append(i.buf, p...)
	return len(p), nil
}

func (i *injector) finish() {
	if i.passthrough {
		return
	}
	body := i.buf
	if idx := bytes.LastIndex(bytes.ToLower(body), []byte("</body>")); idx >= 0 {
		out := make([]byte, 0, len(body)+len(ScriptTag))
		out = append(out, body[:idx]...)
		out = append(out, ScriptTag...)
		out = append(out, body[idx:]...)
		body = out
	}
	i.Header().Del("Content-Length")
	i.writeHeader()
	if len(body) > 0 {
		_, _ = i.ResponseWriter.Write(body)
	}
}
