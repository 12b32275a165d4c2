package gatewayimpl

// alipayErrorResponse is the common response envelope every Alipay API
// reply embeds.
type alipayErrorResponse struct {
	Code    string `json:"code"`
	Msg     string `json:"msg"`
	SubCode string `json:"sub_code,omitempty"`
	SubMsg  string `json:"sub_msg,omitempty"`
}

func (r *alipayErrorResponse) IsSuccess() bool { return r.Code == "10000" }

// alipayTradeRefundResponse is alipay.trade.refund's reply.
type alipayTradeRefundResponse struct {
	Response struct {
		alipayErrorResponse
		TradeNo      string `json:"trade_no,omitempty"`
		OutTradeNo   string `json:"out_trade_no,omitempty"`
		RefundFee    string `json:"refund_fee,omitempty"`
		GmtRefundPay string `json:"gmt_refund_pay,omitempty"`
	} `json:"alipay_trade_refund_response"`
	Sign string `json:"sign"`
}

// alipayTradeFastpayRefundQueryResponse is alipay.trade.fastpay.refund.query's reply.
type alipayTradeFastpayRefundQueryResponse struct {
	Response struct {
		alipayErrorResponse
		TradeNo      string `json:"trade_no,omitempty"`
		OutTradeNo   string `json:"out_trade_no,omitempty"`
		OutRequestNo string `json:"out_request_no,omitempty"`
		RefundStatus string `json:"refund_status,omitempty"`
		RefundAmount string `json:"refund_amount,omitempty"`
		GmtRefundPay string `json:"gmt_refund_pay,omitempty"`
	} `json:"alipay_trade_fastpay_refund_query_response"`
	Sign string `json:"sign"`
}

// alipayNotification is a refund webhook, delivered as URL-encoded form
// data rather than JSON.
type alipayNotification struct {
	NotifyID     string `json:"notify_id"`
	AppID        string `json:"app_id"`
	Sign         string `json:"sign"`
	TradeNo      string `json:"trade_no"`
	OutTradeNo   string `json:"out_trade_no"`
	TradeStatus  string `json:"trade_status"`
	RefundFee    string `json:"refund_fee"`
	GmtRefund    string `json:"gmt_refund"`
	OutRequestNo string `json:"out_request_no"`
	RefundStatus string `json:"refund_status"`
}

// alipayBizContent is the biz_content parameter shared by every refund-side
// API call.
type alipayBizContent struct {
	OutTradeNo   string `json:"out_trade_no,omitempty"`
	TradeNo      string `json:"trade_no,omitempty"`
	RefundAmount string `json:"refund_amount,omitempty"`
	RefundReason string `json:"refund_reason,omitempty"`
	OutRequestNo string `json:"out_request_no,omitempty"`
}

const (
	alipayMethodRefund      = "alipay.trade.refund"
	alipayMethodRefundQuery = "alipay.trade.fastpay.refund.query"
)

const alipayRefundStatusRefundSuccess = "REFUND_SUCCESS"

const (
	alipayGatewayURL        = "https://openapi.alipay.com/gateway.do"
	alipaySandboxGatewayURL = "https://openapi-sandbox.dl.alipaydev.com/gateway.do"
	alipayFormat            = "JSON"
	alipayCharset           = "utf-8"
	alipayVersion           = "1.0"
	alipayTimeLayout        = "2006-01-02 15:04:05"
)
