package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/touchline/academy/core"
)

// Password reset links carry "<uid>/<token>", where token is "<day>-<signature>".
// day counts days since tokenEpoch and is base32 encoded.

var (
	salt       = []byte("touchline.core.user.token_gen")
	tokenEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	dayEncoder = base32.StdEncoding.WithPadding(base32.NoPadding)
	nowFunc    = time.Now

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID hides the account ID in reset links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// makeToken signs a reset token for the parent, coach or player asking for one.
func makeToken(usr User) string {
	return tokenForDay(usr, daysSinceEpoch(nowFunc()))
}

// verifyToken accepts a token issued to usr within the reset timeout.
// Changing the password or signing in again invalidates it.
func verifyToken(usr User, token string) error {
	day, err := tokenDay(token)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(tokenForDay(usr, day)), []byte(token)) == 0 {
		return errInvalidToken
	}
	maxAge := int(core.Conf.PasswordResetTimeoutDelta / (24 * time.Hour))
	if daysSinceEpoch(nowFunc())-day > maxAge {
		return errTokenExpired
	}
	return nil
}

// tokenDay extracts the issue day of token, before any signature check.
func tokenDay(token string) (int, error) {
	encoded, _, ok := strings.Cut(token, "-")
	if !ok || encoded == "" {
		return 0, errInvalidToken
	}
	raw, err := dayEncoder.DecodeString(encoded)
	if err != nil {
		return 0, errInvalidToken
	}
	day, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, errInvalidToken
	}
	return day, nil
}

func tokenForDay(usr User, day int) string {
	return dayEncoder.EncodeToString([]byte(strconv.Itoa(day))) + "-" + sign(accountState(usr, day))
}

func daysSinceEpoch(t time.Time) int {
	return int(math.Ceil(t.Sub(tokenEpoch).Hours() / 24))
}

// sign returns the HMAC-SHA256 of val, keyed by the salted secret key.
func sign(val []byte) string {
	key := sha256.Sum256(append(append([]byte{}, salt...), core.Conf.SecretKey...))
	h := hmac.New(sha256.New, key[:])
	h.Write(val)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// accountState is what a token is bound to.
func accountState(usr User, day int) []byte {
	var val bytes.Buffer
	val.WriteString(usr.ID)
	val.Write(usr.PasswordHash)
	if usr.LastLogin.Valid {
		val.WriteString(usr.LastLogin.Time.UTC().Format(time.RFC3339))
	}
	val.WriteString(strconv.Itoa(day))
	return val.Bytes()
}
