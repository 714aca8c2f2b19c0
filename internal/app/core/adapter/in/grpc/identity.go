package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
)

// 登入系統 (gateway) 放進 metadata 的呼叫端身分
const (
	MetadataAccountID    = "x-account-id"
	MetadataAccountEmail = "x-account-email"
)

// MetadataIdentity 從 incoming metadata 取得呼叫端身分
type MetadataIdentity struct{}

var _ usecase.IdentityProvider = MetadataIdentity{}

// CurrentIdentity 需要 x-account-email；x-account-id 沒帶時以 email 當帳戶 ID
func (MetadataIdentity) CurrentIdentity(ctx context.Context) (usecase.Identity, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return usecase.Identity{}, false
	}
	email := firstValue(md, MetadataAccountEmail)
	if email == "" {
		return usecase.Identity{}, false
	}
	id := firstValue(md, MetadataAccountID)
	if id == "" {
		id = email
	}
	return usecase.Identity{AccountID: id, Email: email}, true
}

func firstValue(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// WithIdentity 客戶端在 outgoing ctx 帶上身分
func WithIdentity(ctx context.Context, accountID, email string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, MetadataAccountID, accountID, MetadataAccountEmail, email)
}
