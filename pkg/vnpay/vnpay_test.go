package vnpay

import (
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/freshcart-vn/freshcart-backend/pkg/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(config.VNPayConfig{
		TmnCode:    "FRESHCRT",
		HashSecret: "super-secret-key",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.example.com/payments/return",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

// signParams produces a gateway-style signed parameter set.
func signParams(client *Client, params url.Values) url.Values {
	signed := signedQuery(params)
	params.Set("vnp_SecureHash", client.sign(signed))
	return params
}

func notifyParams(txnRef string, amount int64, responseCode string) url.Values {
	params := url.Values{}
	params.Set("vnp_TmnCode", "FRESHCRT")
	params.Set("vnp_TxnRef", txnRef)
	params.Set("vnp_Amount", strconv.FormatInt(amount*100, 10))
	params.Set("vnp_ResponseCode", responseCode)
	params.Set("vnp_TransactionStatus", responseCode)
	params.Set("vnp_TransactionNo", "14422574")
	params.Set("vnp_BankCode", "NCB")
	params.Set("vnp_PayDate", "20260312103000")
	return params
}

func TestBuildRedirect(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	created := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	redirect, err := client.BuildRedirect(RedirectRequest{
		TxnRef:    "ORDER-123",
		Amount:    35000,
		OrderInfo: "Thanh toan don hang ORDER-123",
		ClientIP:  "203.0.113.7",
		CreatedAt: created,
		ExpiresAt: created.Add(15 * time.Minute),
	})
	if err != nil {
		t.Fatalf("build redirect: %v", err)
	}

	parsed, err := url.Parse(redirect)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	query := parsed.Query()

	if query.Get("vnp_Amount") != "3500000" {
		t.Fatalf("amount = %q, want minor units", query.Get("vnp_Amount"))
	}
	if query.Get("vnp_TxnRef") != "ORDER-123" {
		t.Fatalf("txn ref = %q", query.Get("vnp_TxnRef"))
	}
	if query.Get("vnp_CreateDate") != "20260312100000" {
		t.Fatalf("create date = %q", query.Get("vnp_CreateDate"))
	}
	if query.Get("vnp_SecureHash") == "" {
		t.Fatal("redirect missing signature")
	}

	// The redirect must verify under the same secret.
	verification := client.VerifyReturn(query)
	if !verification.Verified {
		t.Fatal("self-signed redirect failed verification")
	}
	if verification.Amount != 35000 {
		t.Fatalf("amount round-trip = %d", verification.Amount)
	}
}

func TestBuildRedirectRejectsBadInput(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	if _, err := client.BuildRedirect(RedirectRequest{Amount: 1000}); err == nil {
		t.Fatal("missing txn ref accepted")
	}
	if _, err := client.BuildRedirect(RedirectRequest{TxnRef: "X", Amount: 0}); err == nil {
		t.Fatal("zero amount accepted")
	}
}

func TestVerifyInboundValidSignature(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	params := signParams(client, notifyParams("ORDER-123", 35000, "00"))

	verification := client.VerifyInbound(params)
	if !verification.Verified {
		t.Fatal("valid signature rejected")
	}
	if !verification.Success {
		t.Fatal("response code 00 should be success")
	}
	if verification.TxnRef != "ORDER-123" || verification.Amount != 35000 {
		t.Fatalf("fields = %q/%d", verification.TxnRef, verification.Amount)
	}
	if verification.TransactionNo != "14422574" {
		t.Fatalf("transaction no = %q", verification.TransactionNo)
	}
}

func TestVerifyInboundTamperedParams(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	params := signParams(client, notifyParams("ORDER-123", 35000, "00"))
	params.Set("vnp_Amount", "9900000")

	if client.VerifyInbound(params).Verified {
		t.Fatal("tampered amount passed verification")
	}
}

func TestVerifyInboundMissingSignature(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	if client.VerifyInbound(notifyParams("ORDER-123", 35000, "00")).Verified {
		t.Fatal("unsigned message passed verification")
	}
}

func TestVerifyInboundFailedPayment(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	params := signParams(client, notifyParams("ORDER-123", 35000, "24"))

	verification := client.VerifyInbound(params)
	if !verification.Verified {
		t.Fatal("valid signature rejected")
	}
	if verification.Success {
		t.Fatal("non-00 response code reported as success")
	}
	if verification.ResponseCode != "24" {
		t.Fatalf("response code = %q", verification.ResponseCode)
	}
}

func TestVerifyAcceptsUppercaseSignature(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	params := notifyParams("ORDER-123", 35000, "00")
	signature := client.sign(signedQuery(params))
	params.Set("vnp_SecureHash", strings.ToUpper(signature))

	if !client.VerifyInbound(params).Verified {
		t.Fatal("uppercase hex signature rejected")
	}
}
