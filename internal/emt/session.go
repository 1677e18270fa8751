package emt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

const (
	endpointLogin = "v3/mobilitylabs/user/login/"

	// InvalidToken is stored in place of a token when the provider rejects the credentials.
	InvalidToken = "Invalid token"
)

// Session exchanges credentials for an access token and holds it for the lifetime of the
// client. There is no refresh: Authenticate is expected to be called once.
type Session struct {
	client   *Client
	user     string
	password string
	token    string
}

// NewSession creates a session for the given MobilityLabs account.
func NewSession(client *Client, user, password string) *Session {
	return &Session{
		client:   client,
		user:     user,
		password: password,
	}
}

// Authenticate logs in and stores the access token. Rejected credentials are not an error:
// the token becomes InvalidToken and every later call turns into a no-op.
func (s *Session) Authenticate(ctx context.Context) error {
	headers := map[string]string{
		"email":    s.user,
		"password": s.password,
	}

	resp, err := s.client.Request(ctx, http.MethodGet, endpointLogin, headers, nil)
	if err != nil {
		return err
	}

	token, err := extractToken(resp)
	if err != nil {
		return err
	}
	s.token = token
	return nil
}

func extractToken(resp *Response) (string, error) {
	if !LoginSucceeded(resp.Code) {
		log.Warn().Str("code", resp.Code).Msg("Invalid email or password")
		return InvalidToken, nil
	}

	var data []loginData
	if err := decodeData(resp, &data); err != nil {
		return "", &ParseError{What: "token from the API", Err: err}
	}
	if len(data) == 0 {
		return "", &ParseError{What: "token from the API", Err: missing("data[0]")}
	}
	if data[0].AccessToken == nil {
		return "", &ParseError{What: "token from the API", Err: missing("data[0].accessToken")}
	}
	return *data[0].AccessToken, nil
}

// Token returns the current access token, InvalidToken, or "" before authentication.
func (s *Session) Token() string {
	return s.token
}

// Valid reports whether the session holds a usable token.
func (s *Session) Valid() bool {
	return s.token != "" && s.token != InvalidToken
}

// ready tells a caller whether it may hit the network. A rejected token yields (false, nil).
func (s *Session) ready() (bool, error) {
	switch s.token {
	case "":
		return false, ErrNotAuthenticated
	case InvalidToken:
		return false, nil
	default:
		return true, nil
	}
}

func (s *Session) authHeaders() map[string]string {
	return map[string]string{"accessToken": s.token}
}

func decodeData(resp *Response, out any) error {
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return missing("data")
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}
