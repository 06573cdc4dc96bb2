package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "catalog.v1.CatalogService"

	GetFacetsMethod      = "/" + ServiceName + "/GetFacets"
	FilterProductsMethod = "/" + ServiceName + "/FilterProducts"

	protoFile = "catalog/v1/catalog.proto"
)

// CatalogServer is the server API of catalog.v1.CatalogService.
// Requests and responses are google.protobuf.Struct documents.
type CatalogServer interface {
	GetFacets(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FilterProducts(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterCatalogServer registers srv on s.
func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&CatalogServiceDesc, srv)
}

func unaryHandler(method string, call func(CatalogServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CatalogServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CatalogServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var CatalogServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetFacets",
			Handler:    unaryHandler(GetFacetsMethod, CatalogServer.GetFacets),
		},
		{
			MethodName: "FilterProducts",
			Handler:    unaryHandler(FilterProductsMethod, CatalogServer.FilterProducts),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: protoFile,
}

// init registers the file descriptor of the service so reflection clients
// such as grpcurl can describe it.
func init() {
	structType := "." + string((&structpb.Struct{}).ProtoReflect().Descriptor().FullName())
	method := func(name string) *descriptorpb.MethodDescriptorProto {
		return &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(name),
			InputType:  proto.String(structType),
			OutputType: proto.String(structType),
		}
	}
	fdp := &descriptorpb.FileDescriptorProto{
		Name:       proto.String(protoFile),
		Package:    proto.String("catalog.v1"),
		Dependency: []string{structpb.File_google_protobuf_struct_proto.Path()},
		Syntax:     proto.String("proto3"),
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name:   proto.String("CatalogService"),
			Method: []*descriptorpb.MethodDescriptorProto{method("GetFacets"), method("FilterProducts")},
		}},
	}
	fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("failed to build %s descriptor: %v", protoFile, err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("failed to register %s descriptor: %v", protoFile, err))
	}
}
