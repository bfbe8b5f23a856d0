// Package demodata provides sample licenses for demo deployments.
package demodata

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"winsbygroup.com/licverify/internal/license"
)

//go:embed sample.yaml
var sampleYAML []byte

type sample struct {
	Licenses []struct {
		Key         string `yaml:"key"`
		ProductType string `yaml:"product_type"`
		Active      bool   `yaml:"active"`
		HWID        string `yaml:"hwid"`
	} `yaml:"licenses"`
}

// Licenses returns the demo license records.
func Licenses() ([]*license.License, error) {
	var s sample
	if err := yaml.Unmarshal(sampleYAML, &s); err != nil {
		return nil, fmt.Errorf("parse sample data: %w", err)
	}

	out := make([]*license.License, 0, len(s.Licenses))
	for _, l := range s.Licenses {
		lic := &license.License{
			LicenseKey:  l.Key,
			ProductType: l.ProductType,
			Active:      l.Active,
		}
		if l.HWID != "" {
			hwid := l.HWID
			lic.BoundHWID = &hwid
		}
		out = append(out, lic)
	}
	return out, nil
}

// Load inserts the demo licenses through store and returns how many were added.
// Keys that already exist are left untouched.
func Load(ctx context.Context, store license.Store) (int, error) {
	lics, err := Licenses()
	if err != nil {
		return 0, err
	}

	added := 0
	for _, lic := range lics {
		err := store.Create(ctx, lic)
		if errors.Is(err, license.ErrDuplicateKey) {
			continue
		}
		if err != nil {
			return added, fmt.Errorf("load demo license %s: %w", lic.LicenseKey, err)
		}
		added++
	}
	return added, nil
}
