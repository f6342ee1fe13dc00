package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SessionInfo mirrors the server's session endpoints.
type SessionInfo struct {
	Authenticated bool       `json:"authenticated"`
	GateEnabled   bool       `json:"gate_enabled"`
	Expired       bool       `json:"expired,omitempty"`
	LoginTime     *time.Time `json:"login_time,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// Login exchanges the configured access code for a session cookie.
func (c *Client) Login(ctx context.Context) error {
	_, err := c.login(ctx)
	return err
}

func (c *Client) login(ctx context.Context) (SessionInfo, error) {
	p, err := jsonPayload(map[string]string{"access_code": c.accessCode})
	if err != nil {
		return SessionInfo{}, err
	}
	resp, err := c.do(ctx, "POST", "/login", p)
	if err != nil {
		return SessionInfo{}, err
	}
	if !resp.ok() {
		return SessionInfo{}, newAPIError(resp.status, resp.body, resp.url)
	}
	info, err := decodeSession(resp)
	if err != nil {
		return SessionInfo{}, err
	}
	c.loggedIn = true
	c.log.Debug("logged in", "expires_at", info.ExpiresAt)
	return info, nil
}

// Logout ends the current session.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, "POST", "/logout", nil)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return newAPIError(resp.status, resp.body, resp.url)
	}
	c.loggedIn = false
	return nil
}

// Session reports the state of the current session, logging in first when
// an access code is configured.
func (c *Client) Session(ctx context.Context) (SessionInfo, error) {
	if c.accessCode != "" && !c.loggedIn {
		return c.login(ctx)
	}
	resp, err := c.do(ctx, "GET", "/session", nil)
	if err != nil {
		return SessionInfo{}, err
	}
	if !resp.ok() {
		return SessionInfo{}, newAPIError(resp.status, resp.body, resp.url)
	}
	return decodeSession(resp)
}

func decodeSession(resp response) (SessionInfo, error) {
	var info SessionInfo
	if err := json.Unmarshal(resp.body, &info); err != nil {
		return SessionInfo{}, fmt.Errorf("decode session: %w", err)
	}
	return info, nil
}
