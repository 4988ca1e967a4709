package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/freshcart-vn/freshcart-backend/pkg/config"
)

// VNPay signs sorted, url-encoded query parameters with HMAC-SHA512 and
// amounts travel in minor units (VND x 100).

const (
	apiVersion = "2.1.0"
	commandPay = "pay"
	currency   = "VND"
	locale     = "vn"
	orderType  = "other"

	timeLayout = "20060102150405"

	// ResponseCodeSuccess is the gateway's "payment completed" code.
	ResponseCodeSuccess = "00"
)

// RedirectRequest carries everything needed to build a checkout redirect.
type RedirectRequest struct {
	TxnRef    string
	Amount    int64
	OrderInfo string
	ClientIP  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Verification is the outcome of checking a signed inbound message. Fields
// other than Verified are only meaningful when Verified is true.
type Verification struct {
	Verified      bool
	Success       bool
	TxnRef        string
	Amount        int64
	ResponseCode  string
	TransactionNo string
	BankCode      string
}

// Client builds and verifies VNPay messages for one merchant terminal.
type Client struct {
	tmnCode   string
	secret    []byte
	payURL    string
	returnURL string
}

// New builds a VNPay client from configuration.
func New(cfg config.VNPayConfig) (*Client, error) {
	if cfg.TmnCode == "" {
		return nil, fmt.Errorf("vnpay terminal code required")
	}
	if cfg.HashSecret == "" {
		return nil, fmt.Errorf("vnpay hash secret required")
	}
	if cfg.PayURL == "" {
		return nil, fmt.Errorf("vnpay pay url required")
	}
	return &Client{
		tmnCode:   cfg.TmnCode,
		secret:    []byte(cfg.HashSecret),
		payURL:    cfg.PayURL,
		returnURL: cfg.ReturnURL,
	}, nil
}

// BuildRedirect produces the signed checkout URL the customer is sent to.
func (c *Client) BuildRedirect(req RedirectRequest) (string, error) {
	if req.TxnRef == "" {
		return "", fmt.Errorf("transaction reference required")
	}
	if req.Amount <= 0 {
		return "", fmt.Errorf("amount must be positive")
	}

	params := url.Values{}
	params.Set("vnp_Version", apiVersion)
	params.Set("vnp_Command", commandPay)
	params.Set("vnp_TmnCode", c.tmnCode)
	params.Set("vnp_Amount", strconv.FormatInt(req.Amount*100, 10))
	params.Set("vnp_CurrCode", currency)
	params.Set("vnp_TxnRef", req.TxnRef)
	params.Set("vnp_OrderInfo", req.OrderInfo)
	params.Set("vnp_OrderType", orderType)
	params.Set("vnp_Locale", locale)
	params.Set("vnp_ReturnUrl", c.returnURL)
	params.Set("vnp_IpAddr", req.ClientIP)
	params.Set("vnp_CreateDate", req.CreatedAt.Format(timeLayout))
	if !req.ExpiresAt.IsZero() {
		params.Set("vnp_ExpireDate", req.ExpiresAt.Format(timeLayout))
	}

	signed := signedQuery(params)
	signature := c.sign(signed)
	return fmt.Sprintf("%s?%s&vnp_SecureHash=%s", c.payURL, signed, signature), nil
}

// VerifyInbound checks the server-to-server notification signature and
// extracts the payment outcome. Untrusted until Verified is true.
func (c *Client) VerifyInbound(params url.Values) Verification {
	return c.verify(params)
}

// VerifyReturn checks the browser-return redirect with the same discipline,
// kept separate so the two paths can never drift apart silently.
func (c *Client) VerifyReturn(params url.Values) Verification {
	return c.verify(params)
}

func (c *Client) verify(params url.Values) Verification {
	provided := params.Get("vnp_SecureHash")
	if provided == "" {
		return Verification{}
	}

	filtered := url.Values{}
	for key, values := range params {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		for _, value := range values {
			filtered.Add(key, value)
		}
	}

	expected := c.sign(signedQuery(filtered))
	if !hmac.Equal([]byte(strings.ToLower(provided)), []byte(expected)) {
		return Verification{}
	}

	amount, err := strconv.ParseInt(filtered.Get("vnp_Amount"), 10, 64)
	if err != nil {
		return Verification{}
	}

	responseCode := filtered.Get("vnp_ResponseCode")
	status := filtered.Get("vnp_TransactionStatus")
	return Verification{
		Verified:      true,
		Success:       responseCode == ResponseCodeSuccess && (status == "" || status == ResponseCodeSuccess),
		TxnRef:        filtered.Get("vnp_TxnRef"),
		Amount:        amount / 100,
		ResponseCode:  responseCode,
		TransactionNo: filtered.Get("vnp_TransactionNo"),
		BankCode:      filtered.Get("vnp_BankCode"),
	}
}

// signedQuery renders parameters in the exact form VNPay hashes: keys sorted,
// values url-encoded.
func signedQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for i, key := range keys {
		if i > 0 {
			builder.WriteByte('&')
		}
		builder.WriteString(url.QueryEscape(key))
		builder.WriteByte('=')
		builder.WriteString(url.QueryEscape(params.Get(key)))
	}
	return builder.String()
}

func (c *Client) sign(payload string) string {
	mac := hmac.New(sha512.New, c.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign computes the signature for a parameter set the way the gateway does.
// Exported for gateway simulators and tests; production code never signs
// inbound messages.
func Sign(secret string, params url.Values) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(signedQuery(params)))
	return hex.EncodeToString(mac.Sum(nil))
}
