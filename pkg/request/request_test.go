package request

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/appium/allocate", nil)
	r.RemoteAddr = "10.1.2.3:54321"
	assert.Equal(t, "10.1.2.3", ClientIP(r))

	r.Header.Set("X-Real-Ip", "172.16.0.9")
	assert.Equal(t, "172.16.0.9", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(r))
}

func TestCaller_ReadsHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/appium/allocate", nil)
	r.RemoteAddr = "10.1.2.3:54321"
	r.Header.Set(HeaderRequestID, "req-7")
	r.Header.Set(HeaderUser, "ci-bot")
	r.Header.Set(HeaderJenkinsJobLink, "http://jenkins/job/7")

	caller := Caller(r)
	assert.Equal(t, "req-7", caller.RequestID)
	assert.Equal(t, "ci-bot", caller.User)
	assert.Equal(t, "http://jenkins/job/7", caller.JenkinsJobLink)
	assert.Equal(t, "10.1.2.3", caller.ClientIP)
}

func TestCaller_GeneratesRequestID(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/appium/allocate", nil)

	caller := Caller(r)
	require.NotEmpty(t, caller.RequestID)

	_, err := uuid.Parse(caller.RequestID)
	assert.NoError(t, err)
}
