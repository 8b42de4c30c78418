package config

import (
	"cmp"
	"fmt"
	"os"

	"github.com/russianinvestments/invest-api-go-sdk/investgo"
)

const (
	TInvestTokenEnv = "T_INVEST_API_TOKEN"

	_tinvestAppName = "fintrack"
)

// LoadTInvestConfig reads the investgo yaml. The token is never stored in the
// file and comes from the environment.
func LoadTInvestConfig(filename string) (investgo.Config, error) {
	cfg, err := investgo.LoadConfig(filename)
	if err != nil {
		return investgo.Config{}, fmt.Errorf("%w: can't load t-invest config", err)
	}

	cfg.Token = os.Getenv(TInvestTokenEnv)
	if cfg.Token == "" {
		return investgo.Config{}, fmt.Errorf("empty %s, required by the tinvest equity provider", TInvestTokenEnv)
	}
	cfg.AppName = cmp.Or(cfg.AppName, _tinvestAppName)

	return cfg, nil
}
