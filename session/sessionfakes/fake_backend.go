package sessionfakes

import (
	"context"
	"sync/atomic"

	"github.com/LucianaVC752/CajasDelCampo-sub000/api"
	"github.com/LucianaVC752/CajasDelCampo-sub000/credentials"
	"github.com/LucianaVC752/CajasDelCampo-sub000/session"
)

var _ session.Backend = (*FakeBackend)(nil)

// FakeBackend implements session.Backend with overridable func fields and
// per-endpoint call counters. Unset funcs return zero values.
type FakeBackend struct {
	LoginFunc         func(ctx context.Context, email, password string) (*api.AuthResponse, error)
	RegisterFunc      func(ctx context.Context, registration api.Registration) (*api.AuthResponse, error)
	RefreshFunc       func(ctx context.Context, refreshToken string) (*api.AuthResponse, error)
	LogoutFunc        func(ctx context.Context) error
	UpdateProfileFunc func(ctx context.Context, update api.ProfileUpdate) (*credentials.User, error)

	LoginCalls         atomic.Int32
	RegisterCalls      atomic.Int32
	RefreshCalls       atomic.Int32
	LogoutCalls        atomic.Int32
	UpdateProfileCalls atomic.Int32
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{}
}

func (f *FakeBackend) Login(ctx context.Context, email, password string) (*api.AuthResponse, error) {
	f.LoginCalls.Add(1)
	if f.LoginFunc == nil {
		return nil, nil
	}
	return f.LoginFunc(ctx, email, password)
}

func (f *FakeBackend) Register(ctx context.Context, registration api.Registration) (*api.AuthResponse, error) {
	f.RegisterCalls.Add(1)
	if f.RegisterFunc == nil {
		return nil, nil
	}
	return f.RegisterFunc(ctx, registration)
}

func (f *FakeBackend) Refresh(ctx context.Context, refreshToken string) (*api.AuthResponse, error) {
	f.RefreshCalls.Add(1)
	if f.RefreshFunc == nil {
		return nil, nil
	}
	return f.RefreshFunc(ctx, refreshToken)
}

func (f *FakeBackend) Logout(ctx context.Context) error {
	f.LogoutCalls.Add(1)
	if f.LogoutFunc == nil {
		return nil
	}
	return f.LogoutFunc(ctx)
}

func (f *FakeBackend) UpdateProfile(ctx context.Context, update api.ProfileUpdate) (*credentials.User, error) {
	f.UpdateProfileCalls.Add(1)
	if f.UpdateProfileFunc == nil {
		return nil, nil
	}
	return f.UpdateProfileFunc(ctx, update)
}
