package client

import "context"

// StartCheckout returns the hosted checkout page that upgrades the account
// to premium. The tier changes once the payment provider confirms it.
func (c *Client) StartCheckout(ctx context.Context) (string, error) {
	return c.billingURL(ctx, "start checkout", "/rest/v1/billing/checkout")
}

// BillingPortal returns the hosted page for managing or cancelling the
// premium subscription.
func (c *Client) BillingPortal(ctx context.Context) (string, error) {
	return c.billingURL(ctx, "open billing portal", "/rest/v1/billing/portal")
}

func (c *Client) billingURL(ctx context.Context, op, path string) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, op, "POST", path, nil, token, nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}
