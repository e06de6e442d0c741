package grpc

import (
	"context"
	"errors"
	"log/slog"

	"github.com/TomasB/geoalloc/internal/geofence"
	"github.com/TomasB/geoalloc/internal/ipaddr"
	"github.com/TomasB/geoalloc/internal/lookup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Handler implements AllocationServiceServer.
type Handler struct {
	locator lookup.Locator
	checker *geofence.Checker
}

// NewHandler creates a new gRPC handler.
func NewHandler(locator lookup.Locator, checker *geofence.Checker) *Handler {
	return &Handler{locator: locator, checker: checker}
}

// Lookup returns the allocation record containing the requested IP.
func (h *Handler) Lookup(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "ip is required")
	}

	res := h.locator.Lookup(ctx, req.GetValue())
	switch res.Kind {
	case lookup.KindLocated:
		rec := res.Record
		return newStruct(map[string]any{
			"query":        res.Query,
			"network":      rec.Network,
			"range_start":  rec.Start.String(),
			"range_end":    rec.End.String(),
			"country_code": rec.CountryCode,
			"country_name": rec.CountryName,
			"state_code":   rec.StateCode,
			"state_name":   rec.StateName,
		})
	case lookup.KindNotFound:
		return nil, status.Errorf(codes.NotFound, "no allocation contains %s", res.Query)
	}

	if res.ErrorKind() == lookup.ErrorKindStore {
		return nil, status.Error(codes.Internal, "lookup failed")
	}
	return nil, status.Error(codes.InvalidArgument, res.Err.Error())
}

// Check validates whether an IP is allowed for the given country list.
// The request carries "ip" (string) and "allowed_countries" (list of strings).
func (h *Handler) Check(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	fields := req.GetFields()
	ip := fields["ip"].GetStringValue()
	if ip == "" {
		return nil, status.Error(codes.InvalidArgument, "ip is required")
	}

	var allowed []string
	for _, v := range fields["allowed_countries"].GetListValue().GetValues() {
		if s := v.GetStringValue(); s != "" {
			allowed = append(allowed, s)
		}
	}
	if len(allowed) == 0 {
		return nil, status.Error(codes.InvalidArgument, "allowed_countries is required")
	}

	d, err := h.checker.Check(ctx, ip, allowed)
	switch {
	case errors.Is(err, lookup.ErrAmbiguousInput):
		return nil, status.Error(codes.InvalidArgument, "expected a single IP address, not a subnet")
	case errors.Is(err, ipaddr.ErrInvalidAddress):
		return nil, status.Error(codes.InvalidArgument, "invalid IP address")
	case err != nil:
		slog.Error("country lookup failed", "ip", ip, "error", err)
		return nil, status.Error(codes.Internal, "lookup failed")
	}

	return newStruct(map[string]any{
		"allowed": d.Allowed,
		"country": d.Location.CountryCode,
		"state":   d.Location.StateCode,
		"source":  d.Source,
	})
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response failed")
	}
	return out, nil
}
