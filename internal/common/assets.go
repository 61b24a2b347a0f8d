package common

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// AssetConfig is one entry of the asset registry. Symbol is the ledger
// asset identifier; Network is informational.
type AssetConfig struct {
	Symbol  string `yaml:"symbol"`
	Network string `yaml:"network"`
}

type AssetsConfig struct {
	Assets []AssetConfig `yaml:"assets"`
}

func LoadAssetConfig(assetsFile string) ([]AssetConfig, error) {
	var config AssetsConfig
	if err := readYaml(assetsFile, &config); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(config.Assets))
	for i, asset := range config.Assets {
		if asset.Symbol == "" {
			return nil, fmt.Errorf("asset at index %d missing symbol", i)
		}
		if seen[asset.Symbol] {
			return nil, fmt.Errorf("asset %s listed twice", asset.Symbol)
		}
		seen[asset.Symbol] = true
	}
	if len(config.Assets) == 0 {
		return nil, fmt.Errorf("%s lists no assets", assetsFile)
	}

	return config.Assets, nil
}

func LoadAssetSymbols(assetsFile string) ([]string, error) {
	assets, err := LoadAssetConfig(assetsFile)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, len(assets))
	for i, asset := range assets {
		symbols[i] = asset.Symbol
	}

	return symbols, nil
}

// readYaml resolves path against the working directory and decodes it.
func readYaml(path string, out any) error {
	resolved := path
	if !filepath.IsAbs(path) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		resolved = filepath.Join(wd, path)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return fmt.Errorf("unable to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unable to parse %s: %w", path, err)
	}
	return nil
}
