package motionv1

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// File describes motion/v1/motion.proto. It is registered with the global
// registry so server reflection can describe MotionService, not only list it.
var File protoreflect.FileDescriptor

func init() {
	method := func(name, in string, streaming bool) *descriptorpb.MethodDescriptorProto {
		m := &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(name),
			InputType:  proto.String(in),
			OutputType: proto.String(".google.protobuf.Struct"),
		}
		if streaming {
			m.ServerStreaming = proto.Bool(true)
		}
		return m
	}
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(ServiceDesc.Metadata.(string)),
		Package: proto.String("motion.v1"),
		Dependency: []string{
			"google/protobuf/empty.proto",
			"google/protobuf/struct.proto",
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("MotionService"),
			Method: []*descriptorpb.MethodDescriptorProto{
				method("Report", ".google.protobuf.Struct", false),
				method("Latest", ".google.protobuf.Empty", false),
				method("Health", ".google.protobuf.Empty", false),
				method("Watch", ".google.protobuf.Struct", true),
			},
		}},
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/alfredjeanlab/motionrelay/internal/motionv1"),
		},
		Syntax: proto.String("proto3"),
	}
	// empty.proto and struct.proto are registered by emptypb and structpb.
	fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
	if err != nil {
		panic("motionv1: building descriptor: " + err.Error())
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic("motionv1: registering descriptor: " + err.Error())
	}
	File = fd
}
