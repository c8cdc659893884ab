package config

import (
	"errors"
	"fmt"
)

// validate enforces the settings that must exist outside local development.
// Local runs fall back to in-memory stores instead.
func (c *Config) validate() error {
	if IsLocal(c.Env) {
		return nil
	}
	var errs []error
	if c.PushToken == "" {
		errs = append(errs, errors.New("API_TOKEN is required"))
	}
	if !c.Artifact.CanUseS3() {
		errs = append(errs, errors.New("BUCKET_NAME and ARTIFACT_S3_ACCESS_KEY/ARTIFACT_S3_SECRET_KEY are required"))
	}
	if c.Record.DSN == "" && !c.Record.CanUseD1() {
		errs = append(errs, errors.New("RECORD_STORE_DSN or CLOUDFLARE_ACCOUNT_ID/CLOUDFLARE_API_TOKEN/D1_DATABASE_ID are required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config for env %q: %w", c.Env, errors.Join(errs...))
	}
	return nil
}
