package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var ErrInvalidGoogleToken = errors.New("invalid google id token")

// GoogleIdentity is the verified result of an external ID-token check.
type GoogleIdentity struct {
	Email     string
	SubjectID string
}

// GoogleVerifier verifies an opaque bearer token with the external identity
// provider. Behind an interface so handlers can be tested without the network.
type GoogleVerifier interface {
	Verify(idToken string) (*GoogleIdentity, error)
}

// GoogleTokenVerifier validates ID tokens against Google's tokeninfo endpoint.
type GoogleTokenVerifier struct {
	client   *http.Client
	endpoint string
}

// NewGoogleTokenVerifier constructs a verifier with a bounded HTTP timeout.
func NewGoogleTokenVerifier() *GoogleTokenVerifier {
	return &GoogleTokenVerifier{
		client:   &http.Client{Timeout: 10 * time.Second},
		endpoint: "https://oauth2.googleapis.com/tokeninfo",
	}
}

type tokenInfoResponse struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Exp           string `json:"exp"`
}

// Verify checks the token and returns the verified (email, subject) pair.
func (v *GoogleTokenVerifier) Verify(idToken string) (*GoogleIdentity, error) {
	resp, err := v.client.Get(v.endpoint + "?id_token=" + url.QueryEscape(idToken))
	if err != nil {
		return nil, fmt.Errorf("tokeninfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrInvalidGoogleToken
	}

	var info tokenInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("tokeninfo decode failed: %w", err)
	}

	if info.Email == "" || info.Sub == "" || info.EmailVerified != "true" {
		return nil, ErrInvalidGoogleToken
	}

	return &GoogleIdentity{Email: info.Email, SubjectID: info.Sub}, nil
}
