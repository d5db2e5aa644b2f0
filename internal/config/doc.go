// Package config loads integralq configuration.
//
// Sources, lowest precedence first:
//
//  1. Default()
//  2. YAML file (integralq.yaml, config.yaml or configs/config.yaml, or an explicit path)
//  3. Environment variables prefixed INTEGRALQ_, after loading .env
//
// Examples:
//
//	INTEGRALQ_SERVER_PORT=9090
//	INTEGRALQ_LLM_PROVIDER=ollama
//	INTEGRALQ_LLM_BASE_URL=http://localhost:11434
//	INTEGRALQ_DATABASE_TYPE=postgres
//	INTEGRALQ_ANALYSIS_FORECAST_HORIZON=12
package config
