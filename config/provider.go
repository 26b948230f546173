package config

import "go.uber.org/fx"

func NewProvider(customConfig *Config) fx.Option {
	if customConfig != nil {
		return fx.Provide(func() (*Config, error) {
			if err := Validate(customConfig); err != nil {
				return nil, err
			}
			return customConfig, nil
		})
	}

	return fx.Provide(func() (*Config, error) {
		cfg := &Config{}
		if err := LoadConfig(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	})
}
