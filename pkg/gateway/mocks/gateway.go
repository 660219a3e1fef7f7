// Package mocks provides testify doubles for gateway consumers.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/laurent-protocol/laurent-go/pkg/gateway"
	"github.com/laurent-protocol/laurent-go/pkg/subscription"
	"github.com/laurent-protocol/laurent-go/pkg/wire"
)

// Gateway is a mock gateway.Gateway.
type Gateway struct {
	mock.Mock
}

// Compile-time interface satisfaction check.
var _ gateway.Gateway = (*Gateway)(nil)

// NewGateway creates a mock that asserts its expectations when the test ends.
func NewGateway(t interface {
	mock.TestingT
	Cleanup(func())
}) *Gateway {
	m := &Gateway{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *Gateway) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *Gateway) Info(ctx context.Context) (string, error) {
	ret := m.Called(ctx)
	return ret.String(0), ret.Error(1)
}

func (m *Gateway) Authorize(ctx context.Context, password string) error {
	return m.Called(ctx, password).Error(0)
}

func (m *Gateway) ConfigureEvent(ctx context.Context, kind wire.EventKind, enabled bool) error {
	return m.Called(ctx, kind, enabled).Error(0)
}

func (m *Gateway) Relay(ctx context.Context, id uint32, action wire.RelayAction, delay *wire.ClickDelay) error {
	return m.Called(ctx, id, action, delay).Error(0)
}

func (m *Gateway) RelayStatus(ctx context.Context, id uint32) (bool, error) {
	ret := m.Called(ctx, id)
	return ret.Bool(0), ret.Error(1)
}

func (m *Gateway) LineSignal(ctx context.Context, id uint32) (wire.Signal, error) {
	ret := m.Called(ctx, id)
	return ret.Get(0).(wire.Signal), ret.Error(1)
}

func (m *Gateway) Subscribe() *subscription.Subscription[wire.Event] {
	ret := m.Called()
	if ret.Get(0) == nil {
		return nil
	}
	return ret.Get(0).(*subscription.Subscription[wire.Event])
}

func (m *Gateway) Close() error {
	return m.Called().Error(0)
}
