package llm

import (
	"reviewbot/internal/config"
	"reviewbot/internal/httpx"
)

type Config = config.Config

var externalHTTPClient = httpx.ExternalHTTPClient()
