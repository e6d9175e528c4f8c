package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/user"
)

func TestRollbarLoggerPrepare(t *testing.T) {
	conf := *core.Conf
	conf.TestMode = true
	l := NewRollbarLogger(log.New(new(bytes.Buffer), "", 0), &conf)

	usr := user.User{ID: core.NewID(), Username: "coach"}
	err := errors.New("boom")
	extras := map[string]interface{}{"invoice": "INV-2024-0001"}

	tests := []struct {
		name string
		args []interface{}
		want []interface{}
	}{
		{name: "no args", args: nil, want: []interface{}{"msg"}},
		{name: "user is dropped", args: []interface{}{err, usr}, want: []interface{}{"msg", err}},
		{name: "pointer user is dropped", args: []interface{}{&usr, extras}, want: []interface{}{"msg", extras}},
		{name: "second user is dropped too", args: []interface{}{usr, usr, err}, want: []interface{}{"msg", err}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, l.prepare("msg", tc.args))
		})
	}
}

func TestRollbarLoggerPrint(t *testing.T) {
	conf := *core.Conf
	conf.TestMode = true
	buf := new(bytes.Buffer)
	l := NewRollbarLogger(log.New(buf, "", 0), &conf)

	l.Warn("invoice reminder skipped", errors.New("no parent"), user.User{ID: "x"})
	out := buf.String()
	assert.Contains(t, out, "[WARN] invoice reminder skipped")
	assert.Contains(t, out, "no parent")
}
