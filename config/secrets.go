package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/hashicorp/vault/api"
)

// ErrSecretNotFound marks a key the provider does not hold. Callers treat
// it as "keep the configured value"; any other error is a provider failure.
var ErrSecretNotFound = errors.New("secret not found")

// SecretManager interface for retrieving secrets
type SecretManager interface {
	GetSecret(key string) (string, error)
	GetCSRFSecret() (string, error)
	GetJWTSecret() (string, error)
	GetAdminUsername() (string, error)
	GetAdminPassword() (string, error)
}

// EnvSecretManager uses environment variables (default)
type EnvSecretManager struct{}

func (e *EnvSecretManager) GetSecret(key string) (string, error) {
	envKey := "BIDHOUSE_" + strings.ToUpper(key)
	value := os.Getenv(envKey)
	if value == "" {
		return "", fmt.Errorf("%w: environment variable %s not set", ErrSecretNotFound, envKey)
	}
	return value, nil
}

func (e *EnvSecretManager) GetCSRFSecret() (string, error) {
	return e.GetSecret("CSRF_SECRET")
}

func (e *EnvSecretManager) GetJWTSecret() (string, error) {
	return e.GetSecret("AUTH_JWT_SECRET")
}

func (e *EnvSecretManager) GetAdminUsername() (string, error) {
	return e.GetSecret("AUTH_ADMIN_USERNAME")
}

func (e *EnvSecretManager) GetAdminPassword() (string, error) {
	return e.GetSecret("AUTH_ADMIN_PASSWORD")
}

// VaultSecretManager retrieves secrets from HashiCorp Vault
type VaultSecretManager struct {
	config *Config
	client *api.Client
}

func NewVaultSecretManager(config *Config) (*VaultSecretManager, error) {
	client, err := api.NewClient(&api.Config{
		Address: config.Secrets.Vault.Address,
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if config.Secrets.Vault.Token != "" {
		client.SetToken(config.Secrets.Vault.Token)
	} else {
		// Try to get token from environment
		token := os.Getenv("VAULT_TOKEN")
		if token != "" {
			client.SetToken(token)
		}
	}

	return &VaultSecretManager{
		config: config,
		client: client,
	}, nil
}

func (v *VaultSecretManager) GetSecret(key string) (string, error) {
	path := v.config.Secrets.Vault.Path
	if path == "" {
		path = "secret/bidhouse"
	}

	secret, err := v.client.Logical().Read(path)
	if err != nil {
		return "", fmt.Errorf("failed to read from Vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: no data at Vault path %s", ErrSecretNotFound, path)
	}

	value, ok := secret.Data[key]
	if !ok {
		return "", fmt.Errorf("%w: key %s not present in Vault secret", ErrSecretNotFound, key)
	}

	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("secret value for key %s is not a string", key)
	}

	return strValue, nil
}

func (v *VaultSecretManager) GetCSRFSecret() (string, error) {
	return v.GetSecret("csrf_secret")
}

func (v *VaultSecretManager) GetJWTSecret() (string, error) {
	return v.GetSecret("jwt_secret")
}

func (v *VaultSecretManager) GetAdminUsername() (string, error) {
	return v.GetSecret("admin_username")
}

func (v *VaultSecretManager) GetAdminPassword() (string, error) {
	return v.GetSecret("admin_password")
}

// AWSSecretManager retrieves secrets from AWS Secrets Manager
type AWSSecretManager struct {
	config *Config
	client *secretsmanager.SecretsManager
}

func NewAWSSecretManager(config *Config) (*AWSSecretManager, error) {
	var sess *session.Session
	var err error

	if config.Secrets.AWS.AccessKey != "" && config.Secrets.AWS.SecretKey != "" {
		sess, err = session.NewSession(&aws.Config{
			Region: aws.String(config.Secrets.AWS.Region),
			Credentials: credentials.NewStaticCredentials(
				config.Secrets.AWS.AccessKey,
				config.Secrets.AWS.SecretKey,
				"",
			),
		})
	} else {
		sess, err = session.NewSession(&aws.Config{
			Region: aws.String(config.Secrets.AWS.Region),
		})
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	client := secretsmanager.New(sess)
	return &AWSSecretManager{
		config: config,
		client: client,
	}, nil
}

func (a *AWSSecretManager) GetSecret(key string) (string, error) {
	secretID := a.config.Secrets.AWS.SecretID
	if secretID == "" {
		secretID = "bidhouse/secrets"
	}

	input := &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	}

	result, err := a.client.GetSecretValue(input)
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == secretsmanager.ErrCodeResourceNotFoundException {
			return "", fmt.Errorf("%w: AWS secret %s does not exist", ErrSecretNotFound, secretID)
		}
		return "", fmt.Errorf("failed to get secret from AWS: %w", err)
	}

	var secrets map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &secrets); err != nil {
		return "", fmt.Errorf("failed to parse AWS secret JSON: %w", err)
	}

	value, ok := secrets[key]
	if !ok {
		return "", fmt.Errorf("%w: key %s not present in AWS secret", ErrSecretNotFound, key)
	}

	return value, nil
}

func (a *AWSSecretManager) GetCSRFSecret() (string, error) {
	return a.GetSecret("csrf_secret")
}

func (a *AWSSecretManager) GetJWTSecret() (string, error) {
	return a.GetSecret("jwt_secret")
}

func (a *AWSSecretManager) GetAdminUsername() (string, error) {
	return a.GetSecret("admin_username")
}

func (a *AWSSecretManager) GetAdminPassword() (string, error) {
	return a.GetSecret("admin_password")
}

// NewSecretManager creates the appropriate secret manager based on configuration
func NewSecretManager(config *Config) (SecretManager, error) {
	provider := config.Secrets.Provider
	if provider == "" {
		provider = "env" // default to environment variables
	}

	switch provider {
	case "env":
		return &EnvSecretManager{}, nil
	case "vault":
		return NewVaultSecretManager(config)
	case "aws":
		return NewAWSSecretManager(config)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", provider)
	}
}

// LoadSecrets loads secrets from the configured provider into config
func LoadSecrets(config *Config) error {
	manager, err := NewSecretManager(config)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}
	return loadSecretsFrom(manager, config)
}

// loadSecretsFrom copies resolved secrets into config. A missing key keeps
// whatever the config already carries; validation decides afterwards
// whether that is acceptable for the environment.
func loadSecretsFrom(manager SecretManager, config *Config) error {
	secrets := []struct {
		name   string
		lookup func() (string, error)
		target *string
	}{
		{"CSRF secret", manager.GetCSRFSecret, &config.CSRF.Secret},
		{"JWT secret", manager.GetJWTSecret, &config.Auth.JWTSecret},
		{"admin username", manager.GetAdminUsername, &config.Auth.AdminUsername},
		{"admin password", manager.GetAdminPassword, &config.Auth.AdminPassword},
	}

	for _, s := range secrets {
		value, err := s.lookup()
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", s.name, err)
		}
		if value != "" {
			*s.target = value
		}
	}

	return nil
}
