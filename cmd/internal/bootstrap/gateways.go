// Package bootstrap holds the startup wiring shared by the HTTP and worker
// binaries so the two processes can't drift on which gateway adapters are
// registered.
package bootstrap

import (
	"os"

	"go.uber.org/zap"

	"github.com/erp/refundengine/internal/domain/gateway"
	"github.com/erp/refundengine/internal/infrastructure/gatewayimpl"
)

// BuildGatewayRegistry registers every gateway adapter whose credentials
// are present in the environment; a gateway without configuration is
// simply left out of the registry rather than failing startup, since a
// merchant may integrate only a subset of the three.
func BuildGatewayRegistry(log *zap.Logger) gateway.Registry {
	registry := gateway.NewInMemoryRegistry()

	if secretKey := os.Getenv("STRIPE_SECRET_KEY"); secretKey != "" {
		registry.Register(gatewayimpl.NewStripeAdapter(secretKey))
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, Stripe adapter not registered")
	}

	if wechatCfg, err := buildWechatConfig(); err != nil {
		log.Warn("wechat gateway not configured", zap.Error(err))
	} else if wechatCfg != nil {
		adapter, err := gatewayimpl.NewWechatAdapter(wechatCfg)
		if err != nil {
			log.Warn("failed to build wechat adapter", zap.Error(err))
		} else {
			registry.Register(adapter)
		}
	}

	if alipayCfg, err := buildAlipayConfig(); err != nil {
		log.Warn("alipay gateway not configured", zap.Error(err))
	} else if alipayCfg != nil {
		adapter, err := gatewayimpl.NewAlipayAdapter(alipayCfg)
		if err != nil {
			log.Warn("failed to build alipay adapter", zap.Error(err))
		} else {
			registry.Register(adapter)
		}
	}

	return registry
}

func buildWechatConfig() (*gatewayimpl.WechatPayConfig, error) {
	mchID := os.Getenv("WECHAT_MCH_ID")
	if mchID == "" {
		return nil, nil
	}
	return gatewayimpl.NewWechatPayConfigBuilder().
		SetMchID(mchID).
		SetAppID(os.Getenv("WECHAT_APP_ID")).
		SetAPIKey(os.Getenv("WECHAT_API_KEY")).
		SetSerialNo(os.Getenv("WECHAT_SERIAL_NO")).
		SetPrivateKeyFromFile(os.Getenv("WECHAT_PRIVATE_KEY_PATH")).
		SetRefundNotifyURL(os.Getenv("WECHAT_REFUND_NOTIFY_URL")).
		Build()
}

func buildAlipayConfig() (*gatewayimpl.AlipayConfig, error) {
	appID := os.Getenv("ALIPAY_APP_ID")
	if appID == "" {
		return nil, nil
	}
	return gatewayimpl.NewAlipayConfigBuilder().
		SetAppID(appID).
		SetPrivateKeyFromFile(os.Getenv("ALIPAY_PRIVATE_KEY_PATH")).
		SetAlipayPublicKeyFromPEM(os.Getenv("ALIPAY_PUBLIC_KEY")).
		Build()
}
