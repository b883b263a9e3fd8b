package lastfm

import (
	"context"
	"fmt"
	"net/url"
)

// AuthService implements the desktop authentication flow.
type AuthService struct {
	client *Client
}

// GetToken requests an unauthorised token (auth.getToken). The user then
// approves it at GetAuthURL before GetSession is called.
func (a *AuthService) GetToken(ctx context.Context) (*Token, error) {
	inner, err := a.client.call(ctx, "auth.getToken", nil, false)
	if err != nil {
		return nil, err
	}

	var x struct {
		Token string `xml:"token"`
	}
	if err := unwrap(inner, &x); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse token response: %w", err)
	}
	if x.Token == "" {
		return nil, fmt.Errorf("lastfm: empty token in response")
	}

	return &Token{Token: x.Token}, nil
}

// GetAuthURL returns the page where the user approves token.
func (a *AuthService) GetAuthURL(token string) string {
	q := url.Values{}
	q.Set("api_key", a.client.apiKey)
	q.Set("token", token)
	return DefaultAuthURL + "?" + q.Encode()
}

// GetSession exchanges an approved token for a session key
// (auth.getSession). Session keys do not expire; store it.
func (a *AuthService) GetSession(ctx context.Context, token string) (*Session, error) {
	inner, err := a.client.call(ctx, "auth.getSession", map[string]string{"token": token}, false)
	if err != nil {
		return nil, err
	}

	var x struct {
		Session struct {
			Name       string `xml:"name"`
			Key        string `xml:"key"`
			Subscriber int    `xml:"subscriber"`
		} `xml:"session"`
	}
	if err := unwrap(inner, &x); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse session response: %w", err)
	}

	return &Session{
		Key:        x.Session.Key,
		Username:   x.Session.Name,
		Subscriber: x.Session.Subscriber == 1,
	}, nil
}
