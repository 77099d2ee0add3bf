package supabase

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"portfolio-hub/internal/remote"

	"github.com/tidwall/gjson"
)

// GetSession returns the stored session, refreshing it once it expired
func (c *Client) GetSession(ctx context.Context) (*remote.Session, error) {
	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()
	if s == nil {
		return nil, nil
	}
	if s.ExpiresAt.IsZero() || time.Now().Before(s.ExpiresAt) {
		cp := *s
		return &cp, nil
	}
	if s.RefreshToken == "" {
		c.clearSession()
		return nil, nil
	}

	params := url.Values{"grant_type": {"refresh_token"}}
	body, err := c.do(ctx, "refresh", "auth", http.MethodPost, "/auth/v1/token", params,
		map[string]string{"refresh_token": s.RefreshToken}, "")
	if err != nil {
		c.clearSession()
		return nil, err
	}
	return c.storeSession(body), nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*remote.Session, error) {
	params := url.Values{"grant_type": {"password"}}
	body, err := c.do(ctx, "signin", "auth", http.MethodPost, "/auth/v1/token", params,
		map[string]string{"email": email, "password": password}, "")
	if err != nil {
		return nil, err
	}
	return c.storeSession(body), nil
}

// SignUp registers an account. When the project requires email
// confirmation no session is issued and only the user is returned.
func (c *Client) SignUp(ctx context.Context, email, password string) (*remote.Session, error) {
	body, err := c.do(ctx, "signup", "auth", http.MethodPost, "/auth/v1/signup", nil,
		map[string]string{"email": email, "password": password}, "")
	if err != nil {
		return nil, err
	}
	if gjson.GetBytes(body, "access_token").Exists() {
		return c.storeSession(body), nil
	}
	user := gjson.GetBytes(body, "user")
	if !user.Exists() {
		user = gjson.ParseBytes(body)
	}
	return &remote.Session{User: remote.User{
		ID:    user.Get("id").String(),
		Email: user.Get("email").String(),
	}}, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.mu.RLock()
	signedIn := c.session != nil
	c.mu.RUnlock()
	if !signedIn {
		return nil
	}
	_, err := c.do(ctx, "signout", "auth", http.MethodPost, "/auth/v1/logout", nil, nil, "")
	c.clearSession()
	return err
}

func (c *Client) storeSession(body []byte) *remote.Session {
	res := gjson.ParseBytes(body)
	s := &remote.Session{
		AccessToken:  res.Get("access_token").String(),
		RefreshToken: res.Get("refresh_token").String(),
		User: remote.User{
			ID:    res.Get("user.id").String(),
			Email: res.Get("user.email").String(),
		},
	}
	if exp := res.Get("expires_at").Int(); exp > 0 {
		s.ExpiresAt = time.Unix(exp, 0)
	} else if in := res.Get("expires_in").Int(); in > 0 {
		s.ExpiresAt = time.Now().Add(time.Duration(in) * time.Second)
	}

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	cp := *s
	return &cp
}

func (c *Client) clearSession() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}
