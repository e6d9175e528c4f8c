package training

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/touchline/academy/core"
)

func TestCheckInToken(t *testing.T) {
	core.Conf.SecretKey = "secret"
	core.Conf.CheckInLateAfter = 10 * time.Minute

	start := time.Date(2024, time.March, 5, 17, 0, 0, 0, time.UTC)
	tr := Training{ID: core.NewID(), StartsAt: start, EndsAt: start.Add(90 * time.Minute)}
	other := Training{ID: core.NewID(), StartsAt: start, EndsAt: tr.EndsAt}
	token := makeCheckInToken(tr)

	tests := []struct {
		name    string
		tr      Training
		token   string
		now     time.Time
		wantErr error
	}{
		{name: "malformed", tr: tr, token: "lol", now: start, wantErr: errInvalidCheckInToken},
		{name: "bad timestamp", tr: tr, token: "NRXWY-sig", now: start, wantErr: errInvalidCheckInToken},
		{name: "other training", tr: other, token: token, now: start, wantErr: errInvalidCheckInToken},
		{name: "too early", tr: tr, token: token, now: start.Add(-time.Hour), wantErr: errCheckInClosed},
		{name: "after the end", tr: tr, token: token, now: tr.EndsAt.Add(time.Minute), wantErr: errCheckInClosed},
		{name: "lead time", tr: tr, token: token, now: start.Add(-20 * time.Minute)},
		{name: "during", tr: tr, token: token, now: start.Add(45 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, verifyCheckInToken(tt.tr, tt.token, tt.now))
		})
	}
}

func TestCheckInStatus(t *testing.T) {
	core.Conf.CheckInLateAfter = 10 * time.Minute
	start := time.Date(2024, time.March, 5, 17, 0, 0, 0, time.UTC)
	tr := Training{StartsAt: start, EndsAt: start.Add(time.Hour)}

	assert.Equal(t, AttendancePresent, checkInStatus(tr, start.Add(-5*time.Minute)))
	assert.Equal(t, AttendancePresent, checkInStatus(tr, start.Add(10*time.Minute)))
	assert.Equal(t, AttendanceLate, checkInStatus(tr, start.Add(11*time.Minute)))
}
