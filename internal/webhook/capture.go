package webhook

import (
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/mattjoyce/hookbox/internal/logstore"
)

// captureHeaders flattens the request headers into name/value pairs sorted
// by name. Repeated headers keep the order they were received in. net/http
// moves Host out of the header map, so it is added back.
func captureHeaders(r *http.Request) []logstore.Header {
	names := make([]string, 0, len(r.Header)+1)
	for name := range r.Header {
		names = append(names, name)
	}
	_, hasHost := r.Header["Host"]
	if r.Host != "" && !hasHost {
		names = append(names, "Host")
	}
	sort.Strings(names)

	out := make([]logstore.Header, 0, len(names))
	for _, name := range names {
		if name == "Host" && !hasHost {
			out = append(out, logstore.Header{Name: name, Value: r.Host})
			continue
		}
		for _, v := range r.Header[name] {
			out = append(out, logstore.Header{Name: name, Value: v})
		}
	}
	return out
}

// bodyText returns the payload as text. Invalid UTF-8 sequences are replaced
// so any payload, binary included, can be stored.
func bodyText(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

// clientAddress returns the caller address without its port. RealIP has
// already replaced RemoteAddr when a proxy header was present.
func clientAddress(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
