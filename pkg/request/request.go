// Package request extracts caller identity from incoming HTTP requests.
package request

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"remote-device-manager/internal/domain"
)

// Header names shared between clients, the manager and the slaves.
const (
	HeaderAuth           = "Auth"
	HeaderRequestID      = "RequestId"
	HeaderUser           = "User"
	HeaderJenkinsJobLink = "JenkinsJobLink"
)

// ClientIP resolves the originating client address, honouring the usual
// proxy headers before falling back to the socket peer.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return strings.TrimSpace(ip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Caller builds the caller context from the optional identity headers. A
// request id is generated when the header is absent so slave calls and the
// logs URL always carry a usable id.
func Caller(r *http.Request) domain.Caller {
	id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
	if id == "" {
		id = uuid.New().String()
	}
	return domain.Caller{
		RequestID:      id,
		ClientIP:       ClientIP(r),
		User:           r.Header.Get(HeaderUser),
		JenkinsJobLink: r.Header.Get(HeaderJenkinsJobLink),
	}
}
