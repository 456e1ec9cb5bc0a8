package auth

import (
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
)

// Authenticator wraps TOTP secret generation and code verification.
type Authenticator struct{}

// GenerateSecret uses SHA1 for Google Authenticator compatibility. Returns
// the otpauth provisioning URI and the raw secret.
func (g *Authenticator) GenerateSecret(accountName string) (string, string, error) {
	secret, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "PocketLedger",
		AccountName: accountName,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		logrus.WithError(err).Error("totp secret generation failed")
		return "", "", ErrInternalError
	}
	return secret.URL(), secret.Secret(), nil
}

func (g *Authenticator) VerifyCode(secret, code string) bool {
	return totp.Validate(code, secret)
}
