package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestNoAuth(t *testing.T) {
	for _, token := range []string{"any-token", ""} {
		identity, err := NoAuth().Authenticate(context.Background(), token)
		if err != nil {
			t.Errorf("NoAuth(%q) error = %v", token, err)
		}
		if identity != "anonymous" {
			t.Errorf("NoAuth(%q) identity = %q", token, identity)
		}
	}
}

func TestFunc(t *testing.T) {
	auth := Func(func(token string) (string, error) {
		if token == "valid-token" {
			return "user123", nil
		}
		return "", errors.New("invalid token")
	})

	identity, err := auth.Authenticate(context.Background(), "valid-token")
	if err != nil || identity != "user123" {
		t.Errorf("valid token: %q, %v", identity, err)
	}
	identity, err = auth.Authenticate(context.Background(), "other")
	if err == nil || identity != "" {
		t.Errorf("invalid token: %q, %v", identity, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := auth.Authenticate(ctx, "valid-token"); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: %v", err)
	}
}

func TestStaticTokens(t *testing.T) {
	tokens := map[string]string{"t1": "analyst", "t2": "loader"}
	auth := StaticTokens(tokens)
	tokens["t3"] = "late"

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if identity, err := auth.Authenticate(context.Background(), "t2"); err != nil || identity != "loader" {
				t.Errorf("t2: %q, %v", identity, err)
			}
		}()
	}
	wg.Wait()

	if _, err := auth.Authenticate(context.Background(), "t3"); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("map copied: %v", err)
	}
}

func TestTokenFromAuthorizationHeader(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr error
	}{
		{"Bearer abc", "abc", nil},
		{"Bearer  abc ", "abc", nil},
		{"Basic abc", "", ErrInvalidAuthHeader},
		{"Bearer ", "", ErrTokenIsEmpty},
		{"", "", ErrInvalidAuthHeader},
	}
	for _, tt := range tests {
		got, err := TokenFromAuthorizationHeader(tt.header)
		if got != tt.want || !errors.Is(err, tt.wantErr) {
			t.Errorf("TokenFromAuthorizationHeader(%q) = %q, %v; want %q, %v", tt.header, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestValidateToken(t *testing.T) {
	auth := StaticTokens(map[string]string{"secret": "ops"})

	ctx, err := ValidateToken(context.Background(), "secret", auth)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if IdentityFromContext(ctx) != "ops" {
		t.Errorf("identity = %q", IdentityFromContext(ctx))
	}

	for _, token := range []string{"", "wrong"} {
		_, err := ValidateToken(context.Background(), token, auth)
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("ValidateToken(%q) = %v", token, err)
		}
	}
}

func incoming(header string) context.Context {
	md := metadata.MD{}
	if header != "" {
		md.Set("authorization", header)
	}
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestUnaryServerInterceptor(t *testing.T) {
	interceptor := UnaryServerInterceptor(StaticTokens(map[string]string{"secret": "ops"}))

	var seen string
	handler := func(ctx context.Context, req any) (any, error) {
		seen = IdentityFromContext(ctx)
		return "ok", nil
	}

	if _, err := interceptor(incoming("Bearer secret"), nil, &grpc.UnaryServerInfo{}, handler); err != nil {
		t.Fatalf("valid call: %v", err)
	}
	if seen != "ops" {
		t.Errorf("identity = %q", seen)
	}

	for _, header := range []string{"", "Bearer nope", "Token secret"} {
		_, err := interceptor(incoming(header), nil, &grpc.UnaryServerInfo{}, handler)
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("header %q: %v", header, err)
		}
	}

	passthrough := UnaryServerInterceptor(nil)
	if _, err := passthrough(context.Background(), nil, &grpc.UnaryServerInfo{}, handler); err != nil {
		t.Errorf("nil authenticator: %v", err)
	}
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeStream) Context() context.Context { return f.ctx }

func TestStreamServerInterceptor(t *testing.T) {
	interceptor := StreamServerInterceptor(StaticTokens(map[string]string{"secret": "ops"}))

	var seen string
	handler := func(srv any, ss grpc.ServerStream) error {
		seen = IdentityFromContext(ss.Context())
		return nil
	}

	if err := interceptor(nil, &fakeStream{ctx: incoming("Bearer secret")}, &grpc.StreamServerInfo{}, handler); err != nil {
		t.Fatalf("valid stream: %v", err)
	}
	if seen != "ops" {
		t.Errorf("identity = %q", seen)
	}

	err := interceptor(nil, &fakeStream{ctx: incoming("")}, &grpc.StreamServerInfo{}, handler)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("missing token: %v", err)
	}
}
