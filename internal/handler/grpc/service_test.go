package grpc

import (
	"context"
	"net"
	"testing"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

func startServer(t *testing.T, h *Handler, opts ...grpclib.ServerOption) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpclib.NewServer(opts...)
	Register(srv, h)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	cc, err := grpclib.NewClient("passthrough:///bufnet",
		grpclib.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpclib.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}
	t.Cleanup(func() { cc.Close() })

	return NewClient(cc)
}

func TestClientRoundTrip(t *testing.T) {
	client := startServer(t, newHandler(t, nil))
	ctx := context.Background()

	resp, err := client.Lookup(ctx, "5.6.7.8")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got := resp.GetFields()["state_name"].GetStringValue(); got != "Moscow" {
		t.Errorf("expected state Moscow, got %s", got)
	}

	_, err = client.Lookup(ctx, "8.8.8.8")
	assertCode(t, err, codes.NotFound)

	check, err := client.Check(ctx, "1.2.3.4", []string{"US"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !check.GetFields()["allowed"].GetBoolValue() {
		t.Error("expected allowed to be true")
	}

	_, err = client.Check(ctx, "1.2.3.4", nil)
	assertCode(t, err, codes.InvalidArgument)
}

func TestServerInterceptorSeesMethods(t *testing.T) {
	var methods []string
	interceptor := func(ctx context.Context, req any, info *grpclib.UnaryServerInfo, handler grpclib.UnaryHandler) (any, error) {
		methods = append(methods, info.FullMethod)
		return handler(ctx, req)
	}
	client := startServer(t, newHandler(t, nil), grpclib.UnaryInterceptor(interceptor))

	if _, err := client.Lookup(context.Background(), "1.2.3.4"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if _, err := client.Check(context.Background(), "1.2.3.4", []string{"US"}); err != nil {
		t.Fatalf("check: %v", err)
	}

	if len(methods) != 2 || methods[0] != lookupMethod || methods[1] != checkMethod {
		t.Errorf("unexpected intercepted methods %v", methods)
	}
}
