package gatewayimpl

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/refundengine/internal/domain/gateway"
)

// AlipayAdapter implements gateway.Adapter for Alipay Open Platform,
// adapted from the merchant payment adapter's CreateRefund/QueryRefund/
// VerifyRefundCallback methods down to the four-method contract.
type AlipayAdapter struct {
	config     *AlipayConfig
	httpClient *http.Client
}

func NewAlipayAdapter(config *AlipayConfig) (*AlipayAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &AlipayAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (a *AlipayAdapter) GatewayType() string { return "ALIPAY" }

func (a *AlipayAdapter) ProcessRefund(ctx context.Context, req gateway.RefundRequest, creds gateway.Credentials) (gateway.RefundResult, error) {
	bizContent := alipayBizContent{
		OutTradeNo:   req.GatewayTransactionID,
		RefundAmount: req.Amount.StringFixed(2),
		OutRequestNo: req.RefundReference,
		RefundReason: req.Reason,
	}

	params, err := a.signedParams(alipayMethodRefund, bizContent)
	if err != nil {
		return gateway.RefundResult{}, err
	}

	respBody, err := a.doRequest(ctx, params)
	if err != nil {
		return toRefundError(err), nil
	}

	var resp alipayTradeRefundResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return gateway.RefundResult{}, fmt.Errorf("alipay: parse refund response: %w", err)
	}
	if !resp.Response.IsSuccess() {
		return toRefundError(gateway.NewError(gateway.ErrorRejection,
			fmt.Sprintf("%s - %s", resp.Response.SubCode, resp.Response.SubMsg), false)), nil
	}

	result := gateway.RefundResult{
		Success:         true,
		GatewayRefundID: req.RefundReference, // Alipay keys refunds by out_request_no
		Status:          gateway.StatusCompleted,
		RawResponse:     string(respBody),
	}
	if resp.Response.RefundFee != "" {
		if amount, err := decimal.NewFromString(resp.Response.RefundFee); err == nil {
			result.ProcessedAmount = amount
		}
	}
	if resp.Response.GmtRefundPay != "" {
		if t, err := time.Parse(alipayTimeLayout, resp.Response.GmtRefundPay); err == nil {
			result.ProcessingDate = &t
		}
	}
	return result, nil
}

func (a *AlipayAdapter) CheckRefundStatus(ctx context.Context, gatewayRefundID string, creds gateway.Credentials) (gateway.RefundResult, error) {
	bizContent := alipayBizContent{OutRequestNo: gatewayRefundID}

	params, err := a.signedParams(alipayMethodRefundQuery, bizContent)
	if err != nil {
		return gateway.RefundResult{}, err
	}

	respBody, err := a.doRequest(ctx, params)
	if err != nil {
		return toRefundError(err), nil
	}

	var resp alipayTradeFastpayRefundQueryResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return gateway.RefundResult{}, fmt.Errorf("alipay: parse refund query response: %w", err)
	}
	if !resp.Response.IsSuccess() {
		return toRefundError(gateway.NewError(gateway.ErrorRejection,
			fmt.Sprintf("%s - %s", resp.Response.SubCode, resp.Response.SubMsg), false)), nil
	}

	status := gateway.StatusPending
	if resp.Response.RefundStatus == alipayRefundStatusRefundSuccess {
		status = gateway.StatusCompleted
	}

	result := gateway.RefundResult{
		Success:         status == gateway.StatusCompleted,
		GatewayRefundID: resp.Response.OutRequestNo,
		Status:          status,
		RawResponse:     string(respBody),
	}
	if resp.Response.RefundAmount != "" {
		if amount, err := decimal.NewFromString(resp.Response.RefundAmount); err == nil {
			result.ProcessedAmount = amount
		}
	}
	if resp.Response.GmtRefundPay != "" {
		if t, err := time.Parse(alipayTimeLayout, resp.Response.GmtRefundPay); err == nil {
			result.ProcessingDate = &t
		}
	}
	return result, nil
}

// ValidateWebhookSignature verifies a refund notification's RSA2 signature
// against the form-encoded payload, the way VerifyRefundCallback did before
// parsing the body.
func (a *AlipayAdapter) ValidateWebhookSignature(payload []byte, signature string, secret string) bool {
	values, err := url.ParseQuery(string(payload))
	if err != nil {
		return false
	}
	if signature == "" {
		signature = values.Get("sign")
	}
	return a.verifySign(values, signature)
}

// ParseWebhookEvent parses a verified refund notification into a
// NormalizedEvent. Callers must call ValidateWebhookSignature first.
func (a *AlipayAdapter) ParseWebhookEvent(payload []byte) ([]gateway.NormalizedEvent, error) {
	values, err := url.ParseQuery(string(payload))
	if err != nil {
		return nil, fmt.Errorf("alipay: parse notification: %w", err)
	}

	status := gateway.StatusPending
	if values.Get("refund_status") == alipayRefundStatusRefundSuccess {
		status = gateway.StatusCompleted
	}

	result := gateway.RefundResult{
		Success:         status == gateway.StatusCompleted,
		GatewayRefundID: values.Get("out_request_no"),
		Status:          status,
		RawResponse:     string(payload),
	}
	if fee := values.Get("refund_fee"); fee != "" {
		if amount, err := decimal.NewFromString(fee); err == nil {
			result.ProcessedAmount = amount
		}
	}

	occurredAt := time.Now()
	if gmt := values.Get("gmt_refund"); gmt != "" {
		if t, err := time.Parse(alipayTimeLayout, gmt); err == nil {
			occurredAt = t
			result.ProcessingDate = &t
		}
	}

	return []gateway.NormalizedEvent{{
		EventID:         values.Get("notify_id"),
		GatewayRefundID: values.Get("out_request_no"),
		Status:          status,
		Result:          result,
		OccurredAt:      occurredAt,
	}}, nil
}

func (a *AlipayAdapter) signedParams(method string, bizContent alipayBizContent) (map[string]string, error) {
	params := map[string]string{
		"app_id":    a.config.AppID,
		"method":    method,
		"format":    alipayFormat,
		"charset":   alipayCharset,
		"sign_type": a.config.SignType,
		"timestamp": time.Now().Format(alipayTimeLayout),
		"version":   alipayVersion,
	}

	bizBytes, err := json.Marshal(bizContent)
	if err != nil {
		return nil, fmt.Errorf("alipay: marshal biz_content: %w", err)
	}
	params["biz_content"] = string(bizBytes)

	sign, err := a.sign(params)
	if err != nil {
		return nil, fmt.Errorf("alipay: sign request: %w", err)
	}
	params["sign"] = sign

	return params, nil
}

func (a *AlipayAdapter) sign(params map[string]string) (string, error) {
	signStr := a.buildSignString(params)
	hash := sha256.Sum256([]byte(signStr))
	signature, err := rsa.SignPKCS1v15(rand.Reader, a.config.PrivateKey, crypto.SHA256, hash[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

func (a *AlipayAdapter) verifySign(values url.Values, signature string) bool {
	params := make(map[string]string)
	for key := range values {
		if key != "sign" && key != "sign_type" {
			params[key] = values.Get(key)
		}
	}

	signStr := a.buildSignString(params)
	sigBytes, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	hash := sha256.Sum256([]byte(signStr))
	return rsa.VerifyPKCS1v15(a.config.AlipayPublicKey, crypto.SHA256, hash[:], sigBytes) == nil
}

func (a *AlipayAdapter) buildSignString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if params[key] != "" && key != "sign" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", key, params[key]))
	}
	return strings.Join(parts, "&")
}

func (a *AlipayAdapter) doRequest(ctx context.Context, params map[string]string) ([]byte, error) {
	gatewayURL := alipayGatewayURL
	if a.config.IsSandbox {
		gatewayURL = alipaySandboxGatewayURL
	}

	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", gatewayURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, gateway.NewError(gateway.ErrorValidation, fmt.Sprintf("build request: %v", err), false)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

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
		return nil, gateway.NewError(gateway.ErrorRejection, fmt.Sprintf("HTTP %d", resp.StatusCode), false)
	}

	return respBody, nil
}

var _ gateway.Adapter = (*AlipayAdapter)(nil)
