// Package grpc exposes the stateless catalog queries over gRPC.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	cerrors "github.com/abgdnv/catalog/internal/errors"
	"github.com/abgdnv/catalog/internal/service"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// CatalogService is the part of the service used by the gRPC API.
type CatalogService interface {
	Catalog(ctx context.Context) (*service.CatalogDto, error)
	Filter(ctx context.Context, query service.FilterQuery) (*service.FilterResultDto, error)
}

// FilterRequest is the document accepted by FilterProducts.
type FilterRequest struct {
	Search   string `json:"search,omitempty"`
	Category string `json:"category,omitempty"`
	Company  string `json:"company,omitempty"`
	Color    string `json:"color,omitempty"`
	Ship     bool   `json:"ship,omitempty"`
	Price    *int64 `json:"price,omitempty"`
}

type Server struct {
	service CatalogService
	logger  *slog.Logger
}

func NewServer(service CatalogService, logger *slog.Logger) *Server {
	return &Server{service: service, logger: logger.With("component", "grpc")}
}

func (s *Server) GetFacets(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	s.logger.DebugContext(ctx, "received grpc request GetFacets")
	found, err := s.service.Catalog(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, "service.Catalog", err)
	}
	return toStruct(found)
}

func (s *Server) FilterProducts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req FilterRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid filter request: %v", err)
	}
	s.logger.DebugContext(ctx, "received grpc request FilterProducts", slog.Any("request", req))

	result, err := s.service.Filter(ctx, service.FilterQuery{
		SearchName: req.Search,
		Category:   req.Category,
		Company:    req.Company,
		Color:      req.Color,
		Shipping:   req.Ship,
		Price:      req.Price,
	})
	if err != nil {
		return nil, s.toStatus(ctx, "service.Filter", err)
	}
	return toStruct(result)
}

func (s *Server) toStatus(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, cerrors.ErrCatalogUnavailable):
		return status.Error(codes.Unavailable, "catalog is not available")
	case errors.Is(err, cerrors.ErrInvalidFilterValue), errors.Is(err, cerrors.ErrUnknownFilterType):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		s.logger.ErrorContext(ctx, op+" failed", slog.Any("error", err))
		return status.Error(codes.Internal, "internal server error")
	}
}

// toStruct converts a JSON-tagged value into a Struct document.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

// fromStruct decodes a Struct document into a JSON-tagged value.
func fromStruct(in *structpb.Struct, v any) error {
	if in == nil {
		return nil
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
