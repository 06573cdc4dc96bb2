package grpc

import (
	"context"
	"fmt"

	"github.com/abgdnv/catalog/internal/service"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls catalog.v1.CatalogService.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Facets returns the loaded catalog and its facet values.
func (c *Client) Facets(ctx context.Context, opts ...grpc.CallOption) (*service.CatalogDto, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, GetFacetsMethod, &structpb.Struct{}, out, opts...); err != nil {
		return nil, err
	}
	var dto service.CatalogDto
	if err := fromStruct(out, &dto); err != nil {
		return nil, fmt.Errorf("failed to decode facets: %w", err)
	}
	return &dto, nil
}

// Filter runs a filter query on the server.
func (c *Client) Filter(ctx context.Context, req FilterRequest, opts ...grpc.CallOption) (*service.FilterResultDto, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FilterProductsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	var dto service.FilterResultDto
	if err := fromStruct(out, &dto); err != nil {
		return nil, fmt.Errorf("failed to decode filter result: %w", err)
	}
	return &dto, nil
}
