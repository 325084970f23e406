package api

import "context"

// GetClock returns the current market clock.
func (c *Client) GetClock(ctx context.Context) (*Clock, error) {
	var clock Clock
	if err := c.get(ctx, "/v2/clock", nil, &clock); err != nil {
		return nil, err
	}
	return &clock, nil
}
