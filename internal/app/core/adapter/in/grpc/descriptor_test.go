package grpc

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"testing"

	"google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

var (
	protoMessageRe = regexp.MustCompile(`(?s)message (\w+) \{(.*?)\n?\}`)
	protoFieldRe   = regexp.MustCompile(`(?m)^\s*(repeated )?([\w.]+) (\w+) = (\d+);`)
	protoRPCRe     = regexp.MustCompile(`rpc (\w+)\((\w+)\) returns \((\w+)\);`)
)

// describeField 與 .proto 的欄位寫法一致，例如 "repeated string missing = 4"
func describeField(fd protoreflect.FieldDescriptor) string {
	typ := fd.Kind().String()
	if fd.Kind() == protoreflect.MessageKind {
		typ = string(fd.Message().FullName())
		typ = strings.TrimPrefix(typ, protoPackage+".")
	}
	prefix := ""
	if fd.IsList() {
		prefix = "repeated "
	}
	return fmt.Sprintf("%s%s %s = %d", prefix, typ, fd.Name(), fd.Number())
}

func TestProtoFileMatchesDescriptor(t *testing.T) {
	src, err := os.ReadFile("../../../../../../proto/" + ProtoFile)
	if err != nil {
		t.Fatal(err)
	}

	declared := map[string][]string{}
	for _, m := range protoMessageRe.FindAllStringSubmatch(string(src), -1) {
		fields := []string{}
		for _, f := range protoFieldRe.FindAllStringSubmatch(m[2], -1) {
			fields = append(fields, fmt.Sprintf("%s%s %s = %s", f[1], f[2], f[3], f[4]))
		}
		declared[m[1]] = fields
	}

	messages := ledgerFile.Messages()
	if messages.Len() != len(declared) {
		t.Fatalf("descriptor has %d messages, proto file has %d", messages.Len(), len(declared))
	}
	for i := 0; i < messages.Len(); i++ {
		md := messages.Get(i)
		want, ok := declared[string(md.Name())]
		if !ok {
			t.Fatalf("%s missing from proto file", md.Name())
		}
		got := []string{}
		for j := 0; j < md.Fields().Len(); j++ {
			got = append(got, describeField(md.Fields().Get(j)))
		}
		sort.Strings(got)
		sort.Strings(want)
		if strings.Join(got, "; ") != strings.Join(want, "; ") {
			t.Errorf("%s:\n descriptor %v\n proto file %v", md.Name(), got, want)
		}
	}

	methods := ledgerFile.Services().ByName("Ledger").Methods()
	rpcs := protoRPCRe.FindAllStringSubmatch(string(src), -1)
	if methods.Len() != len(rpcs) || len(rpcs) != len(ServiceDesc.Methods) {
		t.Fatalf("methods: descriptor %d, proto file %d, service desc %d", methods.Len(), len(rpcs), len(ServiceDesc.Methods))
	}
	for _, rpc := range rpcs {
		md := methods.ByName(protoreflect.Name(rpc[1]))
		if md == nil || string(md.Input().Name()) != rpc[2] || string(md.Output().Name()) != rpc[3] {
			t.Errorf("rpc %s(%s) returns (%s) does not match descriptor", rpc[1], rpc[2], rpc[3])
		}
	}
}

func TestPlainProtobufClient(t *testing.T) {
	c := newTestClient(t)
	ctx := as("dora")

	// 不經過 Client，直接送 dynamicpb 訊息，模擬用 .proto 產生程式碼的其他語言客戶端
	req := dynamicpb.NewMessage(ledgerFile.Messages().ByName("RegisterRequest"))
	req.Set(req.Descriptor().Fields().ByName("first_name"), protoreflect.ValueOfString("Dora"))
	reply := dynamicpb.NewMessage(ledgerFile.Messages().ByName("AccountReply"))
	if err := c.cc.Invoke(ctx, fullMethod("Register"), req, reply); err != nil {
		t.Fatal(err)
	}
	if got := reply.Get(reply.Descriptor().Fields().ByName("email")).String(); got != "dora@example.com" {
		t.Fatalf("email=%q", got)
	}

	dep := &AmountRequest{Amount: "12.5"}
	raw, err := proto.Marshal(toWire(dep))
	if err != nil {
		t.Fatal(err)
	}
	// 欄位 1 (amount)，wire type 2，長度 4
	if want := "\x0a\x0412.5"; string(raw) != want {
		t.Fatalf("encoded=%q want %q", raw, want)
	}
	op, err := c.Deposit(ctx, dep)
	if err != nil {
		t.Fatal(err)
	}
	if op.Balance != "12.50" || op.Timestamp.IsZero() {
		t.Fatalf("reply=%+v", op)
	}
}

func TestServerReflection(t *testing.T) {
	c := newTestClient(t)
	stream, err := grpc_reflection_v1.NewServerReflectionClient(c.cc).ServerReflectionInfo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	err = stream.Send(&grpc_reflection_v1.ServerReflectionRequest{
		MessageRequest: &grpc_reflection_v1.ServerReflectionRequest_FileContainingSymbol{FileContainingSymbol: ServiceName},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := stream.Recv()
	if err != nil {
		t.Fatal(err)
	}

	for _, raw := range resp.GetFileDescriptorResponse().GetFileDescriptorProto() {
		var fdp descriptorpb.FileDescriptorProto
		if err := proto.Unmarshal(raw, &fdp); err != nil {
			t.Fatal(err)
		}
		if fdp.GetName() != ProtoFile {
			continue
		}
		if len(fdp.GetService()) != 1 || len(fdp.GetService()[0].GetMethod()) != len(ServiceDesc.Methods) {
			t.Fatalf("service=%v", fdp.GetService())
		}
		return
	}
	t.Fatalf("%s not returned by reflection: %v", ProtoFile, resp)
}
