package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/jws"

	fderror "github.com/msto63/firedoc/foundation/core/error"
)

const (
	jwtBearerGrant    = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionLifetime = time.Hour
	maxResponseBytes  = 1 << 20
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// assertion signs the RS256 JWT presented to the token endpoint
func (s *Store) assertion(now time.Time) (string, error) {
	header := &jws.Header{
		Algorithm: "RS256",
		Typ:       "JWT",
		KeyID:     s.account.PrivateKeyID,
	}
	claims := &jws.ClaimSet{
		Iss:   s.account.ClientEmail,
		Scope: strings.Join(s.scopes, " "),
		Aud:   s.tokenURL,
		Iat:   now.Unix(),
		Exp:   now.Add(assertionLifetime).Unix(),
	}
	return jws.Encode(header, claims, s.account.key)
}

func (s *Store) exchange(ctx context.Context) (Credential, error) {
	issued := s.now()
	assertion, err := s.assertion(issued)
	if err != nil {
		return Credential{}, credentialError("sign assertion", err)
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, credentialError("build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Credential{}, credentialError("token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Credential{}, credentialError("read token response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Credential{}, credentialError(
			fmt.Sprintf("token endpoint returned status %d: %s", resp.StatusCode, summarize(body)), nil).
			WithDetail("status", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Credential{}, credentialError("token response is not valid JSON", err)
	}
	if strings.TrimSpace(tr.AccessToken) == "" {
		return Credential{}, credentialError("token response has no access_token", nil)
	}
	if tr.ExpiresIn <= 0 {
		return Credential{}, credentialError(
			fmt.Sprintf("token response has non-positive lifetime %d", tr.ExpiresIn), nil)
	}
	if tr.TokenType != "" && !strings.EqualFold(tr.TokenType, "bearer") {
		return Credential{}, credentialError("unexpected token_type "+tr.TokenType, nil)
	}

	return Credential{
		AccessToken: tr.AccessToken,
		ExpiresAt:   issued.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

func summarize(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		return text[:200] + "..."
	}
	return text
}

func credentialError(message string, cause error) *fderror.Error {
	var e *fderror.Error
	if cause != nil {
		e = fderror.Wrap(cause, message)
	} else {
		e = fderror.New(message)
	}
	return e.WithCode(fderror.CodeCredential).WithOperation("TokenExchange")
}
