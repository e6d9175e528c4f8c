package training

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/touchline/academy/core"
)

var (
	checkInSalt = []byte("touchline.core.training.checkin")

	// check-in opens this long before a training starts
	checkInLeadTime = 30 * time.Minute

	errInvalidCheckInToken = errors.New("invalid check-in token")
	errCheckInClosed       = errors.New("check-in is closed for this training")
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// makeCheckInToken signs the training ID along with the token expiry, the end of the training.
// The frontend renders it as a QR code.
func makeCheckInToken(t Training) string {
	exp := t.EndsAt.Unix()
	expB32 := b32.EncodeToString([]byte(strconv.FormatInt(exp, 10)))
	return expB32 + "-" + signCheckIn(t.ID, exp)
}

// verifyCheckInToken checks the token belongs to t and that now falls within its check-in window.
func verifyCheckInToken(t Training, token string, now time.Time) error {
	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidCheckInToken
	}
	data, err := b32.DecodeString(parts[0])
	if err != nil {
		return errInvalidCheckInToken
	}
	exp, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return errInvalidCheckInToken
	}
	if subtle.ConstantTimeCompare([]byte(signCheckIn(t.ID, exp)), []byte(parts[1])) == 0 {
		return errInvalidCheckInToken
	}
	if now.Before(t.StartsAt.Add(-checkInLeadTime)) || now.After(time.Unix(exp, 0)) {
		return errCheckInClosed
	}
	return nil
}

func signCheckIn(trainingID string, exp int64) string {
	key := sha256.Sum256(append(append([]byte{}, checkInSalt...), core.Conf.SecretKey...))
	h := hmac.New(sha256.New, key[:])
	h.Write([]byte(trainingID))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatInt(exp, 10)))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// checkInStatus is present until the late threshold after the start, late afterwards.
func checkInStatus(t Training, now time.Time) string {
	if now.After(t.StartsAt.Add(core.Conf.CheckInLateAfter)) {
		return AttendanceLate
	}
	return AttendancePresent
}
