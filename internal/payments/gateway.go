package payments

import (
	"net/url"

	"github.com/freshcart-vn/freshcart-backend/pkg/vnpay"
)

// Adapter is the payment gateway surface the reconciler consumes. The
// concrete implementation lives in pkg/vnpay; tests substitute their own.
type Adapter interface {
	// BuildRedirect is deterministic and side-effect free.
	BuildRedirect(req vnpay.RedirectRequest) (string, error)
	// VerifyInbound authenticates a server-to-server notification. No field
	// of the result may be trusted unless Verified is true.
	VerifyInbound(params url.Values) vnpay.Verification
	// VerifyReturn authenticates the browser-return redirect, independently
	// of VerifyInbound.
	VerifyReturn(params url.Values) vnpay.Verification
}

// NotifyReply is the terminal answer sent back to the gateway's notify call.
// The gateway retries until it sees a code it recognizes, so every branch of
// reconciliation must map to exactly one of these.
type NotifyReply struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

var (
	ReplySuccess          = NotifyReply{RspCode: "00", Message: "Confirm Success"}
	ReplyOrderNotFound    = NotifyReply{RspCode: "01", Message: "Order not found"}
	ReplyAlreadyConfirmed = NotifyReply{RspCode: "02", Message: "Order already confirmed"}
	ReplyInvalidAmount    = NotifyReply{RspCode: "04", Message: "Invalid amount"}
	ReplyChecksumFailure  = NotifyReply{RspCode: "97", Message: "Invalid checksum"}
	ReplyUnknownError     = NotifyReply{RspCode: "99", Message: "Unknown error"}
)
