package service

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpSecretBytes = 20
	totpPeriod      = 30
	totpSkew        = 1
	totpDigits      = otp.DigitsSix
	totpAlgorithm   = otp.AlgorithmSHA1

	qrCodeSize = 256
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// totpEngine implements RFC 6238 with SHA-1, six digits and a 30 second
// period.
type totpEngine struct{}

func NewTotpEngine() TotpEngine {
	return totpEngine{}
}

// GenerateSecret returns 160 random bits as unpadded base32.
func (totpEngine) GenerateSecret() (string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInternalFatal, err)
	}
	return secretEncoding.EncodeToString(raw), nil
}

func (totpEngine) EnrollmentURI(secret, account, issuer string) (string, error) {
	raw, err := secretEncoding.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      totpPeriod,
		Secret:      raw,
		Digits:      totpDigits,
		Algorithm:   totpAlgorithm,
	})
	if err != nil {
		return "", fmt.Errorf("build enrollment uri: %w", err)
	}
	return key.URL(), nil
}

// VerifyCode accepts a code from the step of at or one step either side and
// reports the matched step so callers can reject a replay.
func (totpEngine) VerifyCode(secret, code string, at time.Time) (bool, int64, error) {
	code = strings.TrimSpace(code)
	if len(code) != totpDigits.Length() {
		return false, 0, nil
	}

	opts := totp.ValidateOpts{
		Period:    totpPeriod,
		Digits:    totpDigits,
		Algorithm: totpAlgorithm,
	}
	base := at.Unix() / totpPeriod
	for offset := int64(-totpSkew); offset <= totpSkew; offset++ {
		step := base + offset
		if step < 0 {
			continue
		}
		expected, err := totp.GenerateCodeCustom(secret, time.Unix(step*totpPeriod, 0), opts)
		if err != nil {
			return false, 0, fmt.Errorf("generate totp code: %w", err)
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return true, step, nil
		}
	}
	return false, 0, nil
}

func (totpEngine) QRCode(uri string) (string, error) {
	code, err := qr.Encode(uri, qr.M, qr.Auto)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	code, err = barcode.Scale(code, qrCodeSize, qrCodeSize)
	if err != nil {
		return "", fmt.Errorf("scale qr: %w", err)
	}

	var buf bytes.Buffer
	if err = png.Encode(&buf, code); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
