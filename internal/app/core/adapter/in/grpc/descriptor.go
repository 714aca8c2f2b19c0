package grpc

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// ProtoFile ledger.v1 的 proto 檔，內容與 proto/ledger/v1/ledger.proto 一致
const ProtoFile = "ledger/v1/ledger.proto"

const protoPackage = "ledger.v1"

// ledgerFile 啟動時建好並註冊到 protoregistry.GlobalFiles，server reflection 從這裡查
var ledgerFile = mustRegisterFile()

func mustRegisterFile() protoreflect.FileDescriptor {
	fd, err := protodesc.NewFile(fileDescriptorProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("build %s: %v", ProtoFile, err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("register %s: %v", ProtoFile, err))
	}
	return fd
}

const (
	typeString = descriptorpb.FieldDescriptorProto_TYPE_STRING
	typeInt64  = descriptorpb.FieldDescriptorProto_TYPE_INT64
	typeBool   = descriptorpb.FieldDescriptorProto_TYPE_BOOL
)

func fileDescriptorProto() *descriptorpb.FileDescriptorProto {
	timestamp := "." + string((&timestamppb.Timestamp{}).ProtoReflect().Descriptor().FullName())
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(ProtoFile),
		Package:    proto.String(protoPackage),
		Dependency: []string{timestamppb.File_google_protobuf_timestamp_proto.Path()},
		Syntax:     proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			messageType("RegisterRequest",
				scalarField("first_name", 1, typeString),
				scalarField("last_name", 2, typeString),
			),
			messageType("AccountReply",
				scalarField("account_id", 1, typeString),
				scalarField("email", 2, typeString),
				scalarField("first_name", 3, typeString),
				scalarField("last_name", 4, typeString),
				scalarField("balance", 5, typeString),
				scalarField("version", 6, typeInt64),
			),
			messageType("AmountRequest",
				scalarField("amount", 1, typeString),
				scalarField("request_id", 2, typeString),
			),
			messageType("TransferRequest",
				scalarField("amount", 1, typeString),
				scalarField("recipient_email", 2, typeString),
				scalarField("request_id", 3, typeString),
			),
			messageType("OperationReply",
				scalarField("transaction_id", 1, typeString),
				scalarField("type", 2, typeString),
				scalarField("amount", 3, typeString),
				messageField("timestamp", 4, timestamp),
				scalarField("counterparty", 5, typeString),
				scalarField("balance", 6, typeString),
			),
			messageType("SummaryRequest"),
			messageType("SummaryEntry",
				scalarField("transaction_id", 1, typeString),
				scalarField("type", 2, typeString),
				scalarField("timestamp", 3, typeString),
				scalarField("amount", 4, typeString),
				scalarField("counterparty", 5, typeString),
			),
			messageType("SummaryReply",
				scalarField("account_id", 1, typeString),
				scalarField("email", 2, typeString),
				scalarField("name", 3, typeString),
				scalarField("balance", 4, typeString),
				repeated(messageField("entries", 5, qualified("SummaryEntry"))),
			),
			messageType("ReconcileRequest"),
			messageType("ReconcileReply",
				scalarField("account_id", 1, typeString),
				scalarField("balance", 2, typeString),
				scalarField("computed", 3, typeString),
				repeated(scalarField("missing", 4, typeString)),
				repeated(scalarField("orphans", 5, typeString)),
				scalarField("consistent", 6, typeBool),
			),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Ledger"),
			Method: []*descriptorpb.MethodDescriptorProto{
				method("Register", "RegisterRequest", "AccountReply"),
				method("Deposit", "AmountRequest", "OperationReply"),
				method("Withdraw", "AmountRequest", "OperationReply"),
				method("Transfer", "TransferRequest", "OperationReply"),
				method("Summary", "SummaryRequest", "SummaryReply"),
				method("Reconcile", "ReconcileRequest", "ReconcileReply"),
			},
		}},
	}
}

func qualified(name string) string {
	return "." + protoPackage + "." + name
}

func messageType(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func scalarField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func messageField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalarField(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	f.TypeName = proto.String(typeName)
	return f
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func method(name, in, out string) *descriptorpb.MethodDescriptorProto {
	return &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String(qualified(in)),
		OutputType: proto.String(qualified(out)),
	}
}

// wireMessage 與 ledger.v1 同名 protobuf 訊息互轉的型別
type wireMessage interface {
	protoName() protoreflect.Name
	marshalProto(m protoreflect.Message)
	unmarshalProto(m protoreflect.Message)
}

// wirePtr 限定 *T 實作 wireMessage，讓泛型 handler 能 new 出請求與回應
type wirePtr[T any] interface {
	*T
	wireMessage
}

func newWire(name protoreflect.Name) *dynamicpb.Message {
	md := ledgerFile.Messages().ByName(name)
	if md == nil {
		panic(fmt.Sprintf("%s.%s is not declared in %s", protoPackage, name, ProtoFile))
	}
	return dynamicpb.NewMessage(md)
}

func toWire(msg wireMessage) *dynamicpb.Message {
	m := newWire(msg.protoName())
	msg.marshalProto(m)
	return m
}
