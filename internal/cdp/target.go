package cdp

import "context"

// TargetInfo is the subset of Target.TargetInfo the fleet needs
type TargetInfo struct {
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
	URL      string `json:"url"`
	Attached bool   `json:"attached"`
}

// CreatePage opens a new page target at url
func (c *Client) CreatePage(ctx context.Context, url string) (string, error) {
	var res struct {
		TargetID string `json:"targetId"`
	}
	err := c.Call(ctx, "Target.createTarget", map[string]any{"url": url}, &res)
	return res.TargetID, err
}

// Attach attaches to a target in flat mode and returns the session id
func (c *Client) Attach(ctx context.Context, targetID string) (string, error) {
	var res struct {
		SessionID string `json:"sessionId"`
	}
	err := c.Call(ctx, "Target.attachToTarget", map[string]any{"targetId": targetID, "flatten": true}, &res)
	return res.SessionID, err
}

// TargetInfo returns the current state of a target
func (c *Client) TargetInfo(ctx context.Context, targetID string) (TargetInfo, error) {
	var res struct {
		TargetInfo TargetInfo `json:"targetInfo"`
	}
	err := c.Call(ctx, "Target.getTargetInfo", map[string]any{"targetId": targetID}, &res)
	return res.TargetInfo, err
}

// CloseTarget closes a page target
func (c *Client) CloseTarget(ctx context.Context, targetID string) error {
	return c.Call(ctx, "Target.closeTarget", map[string]any{"targetId": targetID}, nil)
}

// Navigate loads url in the attached page session
func (c *Client) Navigate(ctx context.Context, sessionID, url string) error {
	var res struct {
		ErrorText string `json:"errorText"`
	}
	if err := c.CallSession(ctx, sessionID, "Page.navigate", map[string]any{"url": url}, &res); err != nil {
		return err
	}
	if res.ErrorText != "" {
		return &Error{Message: res.ErrorText}
	}
	return nil
}

// SetExtraHeaders installs headers sent with every request of the page session
func (c *Client) SetExtraHeaders(ctx context.Context, sessionID string, headers map[string]string) error {
	if err := c.CallSession(ctx, sessionID, "Network.enable", map[string]any{}, nil); err != nil {
		return err
	}
	return c.CallSession(ctx, sessionID, "Network.setExtraHTTPHeaders", map[string]any{"headers": headers}, nil)
}
