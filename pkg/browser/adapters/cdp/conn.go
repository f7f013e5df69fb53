package cdp

import (
	"context"
	"sync/atomic"

	"github.com/go-rod/rod/lib/proto"

	"github.com/odvcencio/respview/pkg/browser"
)

// conn is a flattened CDP session on one target.
type conn struct {
	host     *Host
	target   browser.TargetID
	session  proto.TargetSessionID
	detached atomic.Bool
}

func (c *conn) Call(ctx context.Context, sessionID, methodName string, params interface{}) ([]byte, error) {
	if c.detached.Load() {
		return nil, browser.ErrDetached
	}
	if sessionID == "" {
		sessionID = string(c.session)
	}
	res, err := c.host.browser.Call(ctx, sessionID, methodName, params)
	return res, translate(err)
}

func (c *conn) SessionID() proto.TargetSessionID {
	return c.session
}

func (c *conn) Detach(ctx context.Context) error {
	if !c.detached.CompareAndSwap(false, true) {
		return browser.ErrDetached
	}
	err := proto.TargetDetachFromTarget{SessionID: c.session}.Call(c.host.client(ctx))
	return browser.WrapHostError("detach", c.target, translate(err))
}
