package config

import (
	"errors"
	"net/url"
	"os"
)

type RPCConfig struct {
	RPCUrl    string
	RPCApiKey string
}

// Endpoint returns the RPC URL with the provider api key attached as a query
// parameter when one is configured.
func (r *RPCConfig) Endpoint() string {
	if r.RPCApiKey == "" {
		return r.RPCUrl
	}
	u, err := url.Parse(r.RPCUrl)
	if err != nil {
		return r.RPCUrl
	}
	q := u.Query()
	q.Set("api-key", r.RPCApiKey)
	u.RawQuery = q.Encode()
	return u.String()
}

func (r *RPCConfig) Key() string {
	return RPC_CONFIG_KEY
}

func (r *RPCConfig) Load() error {
	r.RPCUrl = os.Getenv("RPC_URL")
	r.RPCApiKey = os.Getenv("RPC_KEY")
	return nil
}

func (r *RPCConfig) Validate() error {
	if r.RPCUrl == "" {
		return errors.New("invalid rpc config")
	}
	return nil
}
