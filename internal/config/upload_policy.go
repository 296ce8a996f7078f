package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/healthtech/filemanager/internal/domain"
	"gopkg.in/yaml.v3"
)

// LoadUploadPolicy loads the upload policy from the YAML file named in the config.
// An empty path yields the built-in PDF policy.
func LoadUploadPolicy(cfg *Config) (*domain.UploadPolicy, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	policyPath := cfg.Upload.PolicyPath
	if policyPath == "" {
		return domain.DefaultUploadPolicy(), nil
	}

	// Check if the file exists
	if _, err := os.Stat(policyPath); os.IsNotExist(err) {
		// Try to resolve relative to current working directory
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %w", err)
		}

		policyPath = filepath.Join(cwd, policyPath)
		if _, err := os.Stat(policyPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("upload policy file not found at %s", cfg.Upload.PolicyPath)
		}
	}

	data, err := os.ReadFile(policyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload policy file: %w", err)
	}

	var policy domain.UploadPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse upload policy YAML: %w", err)
	}

	if err := validateUploadPolicy(&policy); err != nil {
		return nil, fmt.Errorf("invalid upload policy: %w", err)
	}

	return &policy, nil
}

// validateUploadPolicy checks that the upload policy is usable
func validateUploadPolicy(policy *domain.UploadPolicy) error {
	if policy == nil {
		return errors.New("policy is nil")
	}

	if policy.MaxFileSizeMB <= 0 {
		return fmt.Errorf("max_file_size_mb must be positive, got %d", policy.MaxFileSizeMB)
	}

	if len(policy.AllowedTypes) == 0 {
		return errors.New("no allowed types defined")
	}

	seen := make(map[string]bool)
	for i, contentType := range policy.AllowedTypes {
		normalized := strings.ToLower(strings.TrimSpace(contentType))
		if normalized == "" {
			return fmt.Errorf("allowed type at index %d is empty", i)
		}
		if !strings.Contains(normalized, "/") {
			return fmt.Errorf("allowed type '%s' is not a MIME type", contentType)
		}
		if seen[normalized] {
			return fmt.Errorf("duplicate allowed type: %s", contentType)
		}
		seen[normalized] = true
		policy.AllowedTypes[i] = normalized
	}

	return nil
}
