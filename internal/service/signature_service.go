package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrSignatureHeader  = errors.New("malformed signature header")
	ErrSignatureExpired = errors.New("signature timestamp outside tolerance")
	ErrSignatureInvalid = errors.New("signature mismatch")
)

// HMACSignatureService implements ports.SignatureService for webhook headers of
// the form "t=<unix>,v1=<hex>", where v1 = HMAC-SHA256(secret, "<t>.<payload>").
type HMACSignatureService struct{}

// NewHMACSignatureService creates a new HMAC-SHA256 signature service.
func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign returns the lowercase hex v1 signature for payload at timestamp.
func (s *HMACSignatureService) Sign(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Header builds the signature header a sender attaches to payload.
func (s *HMACSignatureService) Header(secret string, timestamp int64, payload []byte) string {
	return "t=" + strconv.FormatInt(timestamp, 10) + ",v1=" + s.Sign(secret, timestamp, payload)
}

// VerifyHeader accepts the header when any v1 entry matches and the timestamp is
// within tolerance of now. Comparison is constant time.
func (s *HMACSignatureService) VerifyHeader(secret string, header string, payload []byte, tolerance time.Duration, now time.Time) error {
	var (
		timestamp  int64
		haveTS     bool
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return ErrSignatureHeader
			}
			timestamp, haveTS = ts, true
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if !haveTS || len(signatures) == 0 {
		return ErrSignatureHeader
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > tolerance || age < -tolerance {
		return ErrSignatureExpired
	}

	expected := []byte(s.Sign(secret, timestamp, payload))
	for _, sig := range signatures {
		if hmac.Equal(expected, []byte(sig)) {
			return nil
		}
	}
	return ErrSignatureInvalid
}
