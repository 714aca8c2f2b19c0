package grpc

import (
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/presenter"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
)

// RegisterRequest 第一次登入建立帳戶
type RegisterRequest struct {
	FirstName string
	LastName  string
}

func (*RegisterRequest) protoName() protoreflect.Name { return "RegisterRequest" }

func (r *RegisterRequest) marshalProto(m protoreflect.Message) {
	setString(m, "first_name", r.FirstName)
	setString(m, "last_name", r.LastName)
}

func (r *RegisterRequest) unmarshalProto(m protoreflect.Message) {
	r.FirstName = getString(m, "first_name")
	r.LastName = getString(m, "last_name")
}

// AccountReply 帳戶狀態
type AccountReply struct {
	AccountID string
	Email     string
	FirstName string
	LastName  string
	Balance   string
	Version   int64
}

func (*AccountReply) protoName() protoreflect.Name { return "AccountReply" }

func (r *AccountReply) marshalProto(m protoreflect.Message) {
	setString(m, "account_id", r.AccountID)
	setString(m, "email", r.Email)
	setString(m, "first_name", r.FirstName)
	setString(m, "last_name", r.LastName)
	setString(m, "balance", r.Balance)
	m.Set(fieldOf(m, "version"), protoreflect.ValueOfInt64(r.Version))
}

func (r *AccountReply) unmarshalProto(m protoreflect.Message) {
	r.AccountID = getString(m, "account_id")
	r.Email = getString(m, "email")
	r.FirstName = getString(m, "first_name")
	r.LastName = getString(m, "last_name")
	r.Balance = getString(m, "balance")
	r.Version = m.Get(fieldOf(m, "version")).Int()
}

// AmountRequest 存款 / 提款
type AmountRequest struct {
	Amount string
	// RequestID 可選 (UUID)，重送時帶相同的值
	RequestID string
}

func (*AmountRequest) protoName() protoreflect.Name { return "AmountRequest" }

func (r *AmountRequest) marshalProto(m protoreflect.Message) {
	setString(m, "amount", r.Amount)
	setString(m, "request_id", r.RequestID)
}

func (r *AmountRequest) unmarshalProto(m protoreflect.Message) {
	r.Amount = getString(m, "amount")
	r.RequestID = getString(m, "request_id")
}

// TransferRequest 轉帳
type TransferRequest struct {
	Amount         string
	RecipientEmail string
	RequestID      string
}

func (*TransferRequest) protoName() protoreflect.Name { return "TransferRequest" }

func (r *TransferRequest) marshalProto(m protoreflect.Message) {
	setString(m, "amount", r.Amount)
	setString(m, "recipient_email", r.RecipientEmail)
	setString(m, "request_id", r.RequestID)
}

func (r *TransferRequest) unmarshalProto(m protoreflect.Message) {
	r.Amount = getString(m, "amount")
	r.RecipientEmail = getString(m, "recipient_email")
	r.RequestID = getString(m, "request_id")
}

// OperationReply 套用後的交易與呼叫端餘額
type OperationReply struct {
	TransactionID string
	Type          string
	Amount        string
	Timestamp     time.Time
	Counterparty  string
	Balance       string
}

func (*OperationReply) protoName() protoreflect.Name { return "OperationReply" }

func (r *OperationReply) marshalProto(m protoreflect.Message) {
	setString(m, "transaction_id", r.TransactionID)
	setString(m, "type", r.Type)
	setString(m, "amount", r.Amount)
	if !r.Timestamp.IsZero() {
		m.Set(fieldOf(m, "timestamp"), protoreflect.ValueOfMessage(timestamppb.New(r.Timestamp).ProtoReflect()))
	}
	setString(m, "counterparty", r.Counterparty)
	setString(m, "balance", r.Balance)
}

func (r *OperationReply) unmarshalProto(m protoreflect.Message) {
	r.TransactionID = getString(m, "transaction_id")
	r.Type = getString(m, "type")
	r.Amount = getString(m, "amount")
	r.Timestamp = getTimestamp(m, "timestamp")
	r.Counterparty = getString(m, "counterparty")
	r.Balance = getString(m, "balance")
}

// SummaryRequest 不需要參數，帳戶由呼叫端身分決定
type SummaryRequest struct{}

func (*SummaryRequest) protoName() protoreflect.Name        { return "SummaryRequest" }
func (*SummaryRequest) marshalProto(protoreflect.Message)   {}
func (*SummaryRequest) unmarshalProto(protoreflect.Message) {}

// SummaryEntry 一筆交易的顯示內容
type SummaryEntry struct {
	TransactionID string
	Type          string
	Timestamp     string
	// Amount 帶號金額，例如 "-$12.50"
	Amount       string
	Counterparty string
}

func (*SummaryEntry) protoName() protoreflect.Name { return "SummaryEntry" }

func (e *SummaryEntry) marshalProto(m protoreflect.Message) {
	setString(m, "transaction_id", e.TransactionID)
	setString(m, "type", e.Type)
	setString(m, "timestamp", e.Timestamp)
	setString(m, "amount", e.Amount)
	setString(m, "counterparty", e.Counterparty)
}

func (e *SummaryEntry) unmarshalProto(m protoreflect.Message) {
	e.TransactionID = getString(m, "transaction_id")
	e.Type = getString(m, "type")
	e.Timestamp = getString(m, "timestamp")
	e.Amount = getString(m, "amount")
	e.Counterparty = getString(m, "counterparty")
}

// SummaryReply 帳戶摘要，Balance 與 Entries 的金額都已格式化
type SummaryReply struct {
	AccountID string
	Email     string
	Name      string
	Balance   string
	Entries   []*SummaryEntry
}

func (*SummaryReply) protoName() protoreflect.Name { return "SummaryReply" }

func (r *SummaryReply) marshalProto(m protoreflect.Message) {
	setString(m, "account_id", r.AccountID)
	setString(m, "email", r.Email)
	setString(m, "name", r.Name)
	setString(m, "balance", r.Balance)
	if len(r.Entries) == 0 {
		return
	}
	list := m.Mutable(fieldOf(m, "entries")).List()
	for _, e := range r.Entries {
		el := list.NewElement()
		e.marshalProto(el.Message())
		list.Append(el)
	}
}

func (r *SummaryReply) unmarshalProto(m protoreflect.Message) {
	r.AccountID = getString(m, "account_id")
	r.Email = getString(m, "email")
	r.Name = getString(m, "name")
	r.Balance = getString(m, "balance")
	list := m.Get(fieldOf(m, "entries")).List()
	r.Entries = make([]*SummaryEntry, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		e := &SummaryEntry{}
		e.unmarshalProto(list.Get(i).Message())
		r.Entries = append(r.Entries, e)
	}
}

// ReconcileRequest 不需要參數
type ReconcileRequest struct{}

func (*ReconcileRequest) protoName() protoreflect.Name        { return "ReconcileRequest" }
func (*ReconcileRequest) marshalProto(protoreflect.Message)   {}
func (*ReconcileRequest) unmarshalProto(protoreflect.Message) {}

// ReconcileReply 對帳結果
type ReconcileReply struct {
	AccountID  string
	Balance    string
	Computed   string
	Missing    []string
	Orphans    []string
	Consistent bool
}

func (*ReconcileReply) protoName() protoreflect.Name { return "ReconcileReply" }

func (r *ReconcileReply) marshalProto(m protoreflect.Message) {
	setString(m, "account_id", r.AccountID)
	setString(m, "balance", r.Balance)
	setString(m, "computed", r.Computed)
	setStrings(m, "missing", r.Missing)
	setStrings(m, "orphans", r.Orphans)
	m.Set(fieldOf(m, "consistent"), protoreflect.ValueOfBool(r.Consistent))
}

func (r *ReconcileReply) unmarshalProto(m protoreflect.Message) {
	r.AccountID = getString(m, "account_id")
	r.Balance = getString(m, "balance")
	r.Computed = getString(m, "computed")
	r.Missing = getStrings(m, "missing")
	r.Orphans = getStrings(m, "orphans")
	r.Consistent = m.Get(fieldOf(m, "consistent")).Bool()
}

func fieldOf(m protoreflect.Message, name protoreflect.Name) protoreflect.FieldDescriptor {
	return m.Descriptor().Fields().ByName(name)
}

// setString proto3 字串零值不上線
func setString(m protoreflect.Message, name protoreflect.Name, v string) {
	if v != "" {
		m.Set(fieldOf(m, name), protoreflect.ValueOfString(v))
	}
}

func getString(m protoreflect.Message, name protoreflect.Name) string {
	return m.Get(fieldOf(m, name)).String()
}

func setStrings(m protoreflect.Message, name protoreflect.Name, values []string) {
	if len(values) == 0 {
		return
	}
	list := m.Mutable(fieldOf(m, name)).List()
	for _, v := range values {
		list.Append(protoreflect.ValueOfString(v))
	}
}

func getStrings(m protoreflect.Message, name protoreflect.Name) []string {
	list := m.Get(fieldOf(m, name)).List()
	if list.Len() == 0 {
		return nil
	}
	out := make([]string, list.Len())
	for i := range out {
		out[i] = list.Get(i).String()
	}
	return out
}

// getTimestamp 收到的子訊息是 dynamicpb，依欄位名稱讀 google.protobuf.Timestamp
func getTimestamp(m protoreflect.Message, name protoreflect.Name) time.Time {
	fd := fieldOf(m, name)
	if !m.Has(fd) {
		return time.Time{}
	}
	ts := m.Get(fd).Message()
	seconds := ts.Get(fieldOf(ts, "seconds")).Int()
	nanos := ts.Get(fieldOf(ts, "nanos")).Int()
	return time.Unix(seconds, nanos).UTC()
}

func accountReply(a *domain.Account) *AccountReply {
	return &AccountReply{
		AccountID: a.ID,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Balance:   a.Balance.StringFixed(2),
		Version:   a.Version,
	}
}

func operationReply(r *usecase.Result) *OperationReply {
	return &OperationReply{
		TransactionID: r.Transaction.ID.String(),
		Type:          r.Transaction.Type.String(),
		Amount:        r.Transaction.Amount.String(),
		Timestamp:     r.Transaction.Timestamp,
		Counterparty:  r.Transaction.CounterpartyName,
		Balance:       r.Account.Balance.StringFixed(2),
	}
}

func summaryReply(s *presenter.Summary) *SummaryReply {
	out := &SummaryReply{
		AccountID: s.AccountID,
		Email:     s.Email,
		Name:      s.Name,
		Balance:   s.BalanceFormatted,
		Entries:   make([]*SummaryEntry, 0, len(s.Entries)),
	}
	for _, e := range s.Entries {
		out.Entries = append(out.Entries, &SummaryEntry{
			TransactionID: e.TransactionID,
			Type:          e.Type,
			Timestamp:     e.Timestamp,
			Amount:        e.Amount,
			Counterparty:  e.Counterparty,
		})
	}
	return out
}

func reconcileReply(r *usecase.Report) *ReconcileReply {
	out := &ReconcileReply{
		AccountID:  r.AccountID,
		Balance:    r.Balance.String(),
		Computed:   r.Computed.String(),
		Consistent: r.Consistent(),
	}
	for _, id := range r.Missing {
		out.Missing = append(out.Missing, id.String())
	}
	for _, id := range r.Orphans {
		out.Orphans = append(out.Orphans, id.String())
	}
	return out
}
