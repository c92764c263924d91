package tool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestArgError(t *testing.T) {
	err := ArgErrorf("%s is required", "text")
	assert.Equal(t, "text is required", err.Error())
	assert.True(t, IsArgError(err))
	assert.True(t, IsArgError(fmt.Errorf("wrap: %w", err)))
	assert.False(t, IsArgError(errors.New("text is required")))
	assert.False(t, IsArgError(nil))
}

func TestUpstreamError(t *testing.T) {
	err := &UpstreamError{Service: "search", StatusCode: 503}
	assert.Equal(t, "search returned HTTP 503", err.Error())

	err.Body = " overloaded \n"
	assert.Equal(t, "search returned HTTP 503: overloaded", err.Error())

	err.Body = strings.Repeat("é", 150) + strings.Repeat("語", 150)
	msg := err.Error()
	assert.True(t, utf8.ValidString(msg))
	assert.Equal(t, "search returned HTTP 503: "+strings.Repeat("é", 150)+strings.Repeat("語", 50), msg)
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), true},
		{"429", &UpstreamError{Service: "s", StatusCode: 429}, true},
		{"502", &UpstreamError{Service: "s", StatusCode: 502}, true},
		{"404", &UpstreamError{Service: "s", StatusCode: 404}, false},
		{"net timeout", timeoutErr{}, true},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"plain", errors.New("bad json"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transient(tt.err))
		})
	}
}
