// Package auth obtains and caches bearer credentials for the document store.
//
// A Store holds one service-account key and exchanges a signed JWT assertion
// for a short-lived access token. Tokens are cached and refreshed ahead of
// expiry; concurrent refreshes collapse into a single exchange.
package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"os"
	"strings"

	fderror "github.com/msto63/firedoc/foundation/core/error"
)

// DefaultTokenURL is the Google OAuth 2.0 token endpoint
const DefaultTokenURL = "https://oauth2.googleapis.com/token"

// ServiceAccount is a parsed service-account key
type ServiceAccount struct {
	ClientEmail  string
	PrivateKeyID string
	ProjectID    string
	TokenURI     string

	key *rsa.PrivateKey
}

type serviceAccountFile struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// LoadServiceAccount reads and parses a JSON key file
func LoadServiceAccount(path string) (*ServiceAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configError("read service account key", err).
			WithDetail(fderror.DetailPath, path)
	}
	sa, err := ParseServiceAccount(data)
	if err != nil {
		return nil, fderror.Wrap(err, "load service account").
			WithDetail(fderror.DetailPath, path)
	}
	return sa, nil
}

// ParseServiceAccount parses a JSON key. The private key may be PKCS#8 or
// PKCS#1 PEM and must be RSA.
func ParseServiceAccount(data []byte) (*ServiceAccount, error) {
	var f serviceAccountFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, configError("service account key is not valid JSON", err)
	}
	if f.Type != "" && f.Type != "service_account" {
		return nil, configError("unexpected key type "+f.Type, nil).
			WithDetail(fderror.DetailField, "type")
	}
	if strings.TrimSpace(f.ClientEmail) == "" {
		return nil, configError("service account key has no client_email", nil).
			WithDetail(fderror.DetailField, "client_email")
	}
	if strings.TrimSpace(f.PrivateKey) == "" {
		return nil, configError("service account key has no private_key", nil).
			WithDetail(fderror.DetailField, "private_key")
	}

	key, err := parseRSAKey([]byte(f.PrivateKey))
	if err != nil {
		return nil, err
	}

	return &ServiceAccount{
		ClientEmail:  f.ClientEmail,
		PrivateKeyID: f.PrivateKeyID,
		ProjectID:    f.ProjectID,
		TokenURI:     f.TokenURI,
		key:          key,
	}, nil
}

// NewServiceAccount builds a key from parts already in memory
func NewServiceAccount(email, keyID string, key *rsa.PrivateKey) *ServiceAccount {
	return &ServiceAccount{ClientEmail: email, PrivateKeyID: keyID, key: key}
}

func parseRSAKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, configError("private_key is not PEM encoded", nil).
			WithDetail(fderror.DetailField, "private_key")
	}

	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, configError("private_key is not an RSA key", nil).
				WithDetail(fderror.DetailField, "private_key")
		}
		return key, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, configError("private_key cannot be parsed", err).
			WithDetail(fderror.DetailField, "private_key")
	}
	return key, nil
}

func configError(message string, cause error) *fderror.Error {
	var e *fderror.Error
	if cause != nil {
		e = fderror.Wrap(cause, message)
	} else {
		e = fderror.New(message)
	}
	return e.WithCode(fderror.CodeConfig).WithOperation("LoadServiceAccount")
}
