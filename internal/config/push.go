package config

import "os"

const (
	pushGatewayURLEnv   = "PUSH_GATEWAY_URL"
	dispatchCronSpecEnv = "DISPATCH_CRON_SPEC"

	defaultDispatchCronSpec = "* * * * *"
)

type PushConfig struct {
	GatewayURL       string
	DispatchCronSpec string
}

func LoadPushConfig() *PushConfig {
	cronSpec := os.Getenv(dispatchCronSpecEnv)
	if cronSpec == "" {
		cronSpec = defaultDispatchCronSpec
	}

	return &PushConfig{
		GatewayURL:       os.Getenv(pushGatewayURLEnv),
		DispatchCronSpec: cronSpec,
	}
}
