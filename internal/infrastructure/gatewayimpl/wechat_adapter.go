package gatewayimpl

import (
	"bytes"
	"context"
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/refundengine/internal/domain/gateway"
)

const (
	wechatAPIBaseURL        = "https://api.mch.weixin.qq.com"
	wechatSandboxAPIBaseURL = "https://api.mch.weixin.qq.com/sandboxnew"
	wechatRefundPath        = "/v3/refund/domestic/refunds"
	wechatQueryRefundPath   = "/v3/refund/domestic/refunds/%s"
)

// WechatAdapter implements gateway.Adapter for WeChat Pay v3, adapted from
// the merchant payment adapter's refund-side methods (CreateRefund,
// QueryRefund, VerifyRefundCallback) down to the four-method contract every
// integrated gateway presents to the refund engine.
type WechatAdapter struct {
	config     *WechatPayConfig
	httpClient *http.Client
}

// NewWechatAdapter builds a WechatAdapter from merchant-level config.
func NewWechatAdapter(config *WechatPayConfig) (*WechatAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &WechatAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (a *WechatAdapter) GatewayType() string { return "WECHAT" }

// ProcessRefund submits a refund to WeChat Pay, mapping req.Amount to minor
// units the way the original CreateRefund body builder did.
func (a *WechatAdapter) ProcessRefund(ctx context.Context, req gateway.RefundRequest, creds gateway.Credentials) (gateway.RefundResult, error) {
	body := wechatRefundRequest{
		TransactionID: req.GatewayTransactionID,
		OutRefundNo:   req.RefundReference,
		Reason:        req.Reason,
		NotifyURL:     a.config.RefundNotifyURL,
		Amount: wechatRefundAmount{
			Refund:   int(req.Amount.Mul(decimal.NewFromInt(100)).IntPart()),
			Total:    int(req.Amount.Mul(decimal.NewFromInt(100)).IntPart()),
			Currency: req.Currency,
		},
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return gateway.RefundResult{}, fmt.Errorf("wechat: marshal refund request: %w", err)
	}

	respBody, err := a.doRequest(ctx, "POST", wechatRefundPath, bodyBytes)
	if err != nil {
		return toRefundError(err), nil
	}

	var resp wechatRefundResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return gateway.RefundResult{}, fmt.Errorf("wechat: parse refund response: %w", err)
	}

	return a.toResult(resp, string(respBody)), nil
}

func (a *WechatAdapter) CheckRefundStatus(ctx context.Context, gatewayRefundID string, creds gateway.Credentials) (gateway.RefundResult, error) {
	path := fmt.Sprintf(wechatQueryRefundPath, gatewayRefundID)

	respBody, err := a.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return toRefundError(err), nil
	}

	var resp wechatRefundResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return gateway.RefundResult{}, fmt.Errorf("wechat: parse refund response: %w", err)
	}

	return a.toResult(resp, string(respBody)), nil
}

// ValidateWebhookSignature checks that signature is the base64 HMAC-SHA256
// of payload keyed by secret, supplied by the caller from the Credential
// Manager so the adapter stays stateless across merchants. The
// WECHATPAY2-SHA256-RSA2048 scheme (timestamp, nonce and platform
// certificate RSA signature) is not verified.
func (a *WechatAdapter) ValidateWebhookSignature(payload []byte, signature string, secret string) bool {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(sig, mac.Sum(nil))
}

// ParseWebhookEvent decrypts the AEAD-sealed resource in a refund
// notification and normalizes it, adapted from VerifyRefundCallback's
// decrypt-then-unmarshal path.
func (a *WechatAdapter) ParseWebhookEvent(payload []byte) ([]gateway.NormalizedEvent, error) {
	var notification wechatNotification
	if err := json.Unmarshal(payload, &notification); err != nil {
		return nil, fmt.Errorf("wechat: parse notification: %w", err)
	}

	decrypted, err := a.decryptResource(&notification.Resource)
	if err != nil {
		return nil, fmt.Errorf("wechat: decrypt resource: %w", err)
	}

	var refundData wechatRefundNotification
	if err := json.Unmarshal(decrypted, &refundData); err != nil {
		return nil, fmt.Errorf("wechat: parse refund notification: %w", err)
	}

	status := mapWechatRefundStatus(refundData.RefundStatus)
	result := gateway.RefundResult{
		Success:         status == gateway.StatusCompleted,
		GatewayRefundID: refundData.RefundID,
		Status:          status,
		ProcessedAmount: decimal.NewFromInt(int64(refundData.Amount.Refund)).Div(decimal.NewFromInt(100)),
		RawResponse:     string(decrypted),
	}

	occurredAt := time.Now()
	if refundData.SuccessTime != "" {
		if t, err := time.Parse(time.RFC3339, refundData.SuccessTime); err == nil {
			occurredAt = t
			result.ProcessingDate = &t
		}
	}

	return []gateway.NormalizedEvent{{
		EventID:         notification.ID,
		GatewayRefundID: refundData.RefundID,
		Status:          status,
		Result:          result,
		OccurredAt:      occurredAt,
	}}, nil
}

func (a *WechatAdapter) toResult(resp wechatRefundResponse, raw string) gateway.RefundResult {
	status := mapWechatRefundStatus(resp.Status)
	result := gateway.RefundResult{
		Success:         status == gateway.StatusCompleted,
		GatewayRefundID: resp.RefundID,
		Status:          status,
		ProcessedAmount: decimal.NewFromInt(int64(resp.Amount.Refund)).Div(decimal.NewFromInt(100)),
		RawResponse:     raw,
	}
	if resp.SuccessTime != "" {
		if t, err := time.Parse(time.RFC3339, resp.SuccessTime); err == nil {
			result.ProcessingDate = &t
		}
	}
	return result
}

func toRefundError(err error) gateway.RefundResult {
	gwErr, ok := err.(*gateway.Error)
	if !ok {
		return gateway.RefundResult{Success: false, ErrorMessage: err.Error(), Status: gateway.StatusFailed}
	}
	return gateway.RefundResult{
		Success:      false,
		ErrorMessage: gwErr.Message,
		Retryable:    gwErr.Retryable(),
		Status:       gateway.StatusFailed,
	}
}

func (a *WechatAdapter) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	baseURL := wechatAPIBaseURL
	if a.config.IsSandbox {
		baseURL = wechatSandboxAPIBaseURL
	}
	url := baseURL + path

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, gateway.NewError(gateway.ErrorValidation, fmt.Sprintf("build request: %v", err), false)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	auth, err := a.generateAuthHeader(method, path, body)
	if err != nil {
		return nil, gateway.NewError(gateway.ErrorAuthentication, fmt.Sprintf("sign request: %v", err), false)
	}
	req.Header.Set("Authorization", auth)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, gateway.NewError(gateway.ErrorConnection, err.Error(), true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gateway.NewError(gateway.ErrorConnection, err.Error(), true)
	}

	if resp.StatusCode >= 500 {
		return nil, gateway.NewError(gateway.ErrorServer, fmt.Sprintf("HTTP %d", resp.StatusCode), true)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, gateway.NewError(gateway.ErrorAuthentication, "unauthorized", false)
	}
	if resp.StatusCode >= 400 {
		var errResp wechatErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Code != "" {
			return nil, gateway.NewError(gateway.ErrorRejection, fmt.Sprintf("%s - %s", errResp.Code, errResp.Message), false)
		}
		return nil, gateway.NewError(gateway.ErrorRejection, fmt.Sprintf("HTTP %d", resp.StatusCode), false)
	}

	return respBody, nil
}

func (a *WechatAdapter) generateAuthHeader(method, path string, body []byte) (string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonceStr := generateWechatNonceStr()

	var bodyStr string
	if body != nil {
		bodyStr = string(body)
	}

	message := fmt.Sprintf("%s\n%s\n%s\n%s\n%s\n", method, path, timestamp, nonceStr, bodyStr)
	signature := a.sign(message)

	return fmt.Sprintf(`WECHATPAY2-SHA256-RSA2048 mchid="%s",nonce_str="%s",signature="%s",timestamp="%s",serial_no="%s"`,
		a.config.MchID, nonceStr, signature, timestamp, a.config.SerialNo), nil
}

func (a *WechatAdapter) sign(message string) string {
	hash := sha256.Sum256([]byte(message))
	signature, err := rsa.SignPKCS1v15(rand.Reader, a.config.PrivateKey, crypto.SHA256, hash[:])
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(signature)
}

func (a *WechatAdapter) decryptResource(resource *wechatResource) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(resource.Ciphertext)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher([]byte(a.config.APIKey))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return gcm.Open(nil, []byte(resource.Nonce), ciphertext, []byte(resource.AssociatedData))
}

func generateWechatNonceStr() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func mapWechatRefundStatus(status string) gateway.Status {
	switch status {
	case "SUCCESS":
		return gateway.StatusCompleted
	case "CLOSED", "ABNORMAL":
		return gateway.StatusFailed
	case "PROCESSING":
		return gateway.StatusProcessing
	default:
		return gateway.StatusUnknown
	}
}

var _ gateway.Adapter = (*WechatAdapter)(nil)
