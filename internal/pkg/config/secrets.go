// internal/pkg/config/secrets.go
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"golang.org/x/sync/singleflight"
)

// SecretsManager resolves named secrets such as the backend service token
type SecretsManager interface {
	GetSecret(ctx context.Context, key string) (string, error)
	GetSecrets(ctx context.Context, keys []string) (map[string]string, error)
	RefreshSecrets(ctx context.Context) error
}

var (
	_ SecretsManager = (*AWSSecretsManager)(nil)
	_ SecretsManager = (*EnvSecretsManager)(nil)
)

// SecretValueAPI is the slice of the Secrets Manager client we call
type SecretValueAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// NewSecretsManager builds the provider named in cfg
func NewSecretsManager(ctx context.Context, cfg SecretsConfig, logger *slog.Logger) (SecretsManager, error) {
	switch cfg.Provider {
	case "", "env":
		return NewEnvSecretsManager(), nil
	case "aws":
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
			if cfg.AWSEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
			}
		})
		return NewAWSSecretsManager(client, cfg.AWSSecretName, cfg.CacheTTL, logger), nil
	default:
		return nil, fmt.Errorf("unknown secrets provider %q", cfg.Provider)
	}
}

// loadAWSConfig uses static keys when both are set, the default chain otherwise
func loadAWSConfig(ctx context.Context, cfg SecretsConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

// AWSSecretsManager reads one JSON secret document from AWS Secrets Manager
// and serves keys from it until ttl elapses. Concurrent refetches share a
// single GetSecretValue call.
type AWSSecretsManager struct {
	client     SecretValueAPI
	secretName string
	ttl        time.Duration
	logger     *slog.Logger

	mu        sync.RWMutex
	values    map[string]string
	fetchedAt time.Time
	fetches   singleflight.Group
}

func NewAWSSecretsManager(client SecretValueAPI, secretName string, ttl time.Duration, logger *slog.Logger) *AWSSecretsManager {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AWSSecretsManager{
		client:     client,
		secretName: secretName,
		ttl:        ttl,
		logger:     logger.With(slog.String("component", "aws_secrets")),
	}
}

func (sm *AWSSecretsManager) GetSecret(ctx context.Context, key string) (string, error) {
	doc, err := sm.document(ctx)
	if err != nil {
		return "", err
	}
	val, ok := doc[key]
	if !ok {
		return "", fmt.Errorf("secret key %s not found in %s: %w", key, sm.secretName, ErrMissingRequiredConfig)
	}
	return val, nil
}

// GetSecrets returns the requested keys that exist. Absent keys are logged
// and left out.
func (sm *AWSSecretsManager) GetSecrets(ctx context.Context, keys []string) (map[string]string, error) {
	doc, err := sm.document(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		val, ok := doc[key]
		if !ok {
			sm.logger.WarnContext(ctx, "secret key absent", slog.String("key", key))
			continue
		}
		out[key] = val
	}
	return out, nil
}

// RefreshSecrets forces the next read to hit AWS and performs it.
func (sm *AWSSecretsManager) RefreshSecrets(ctx context.Context) error {
	sm.mu.Lock()
	sm.fetchedAt = time.Time{}
	sm.mu.Unlock()
	_, err := sm.document(ctx)
	return err
}

func (sm *AWSSecretsManager) document(ctx context.Context) (map[string]string, error) {
	sm.mu.RLock()
	values, fresh := sm.values, time.Since(sm.fetchedAt) < sm.ttl
	sm.mu.RUnlock()
	if fresh && values != nil {
		return values, nil
	}

	v, err, _ := sm.fetches.Do(sm.secretName, func() (any, error) {
		return sm.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]string), nil
}

func (sm *AWSSecretsManager) fetch(ctx context.Context) (map[string]string, error) {
	sm.logger.InfoContext(ctx, "fetching secret document", slog.String("secret_name", sm.secretName))

	out, err := sm.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(sm.secretName),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret value: %w", err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", sm.secretName)
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(*out.SecretString), &values); err != nil {
		return nil, fmt.Errorf("failed to parse secret JSON: %w", err)
	}

	sm.mu.Lock()
	sm.values, sm.fetchedAt = values, time.Now()
	sm.mu.Unlock()
	return values, nil
}

// EnvSecretsManager reads secrets straight from the process environment
type EnvSecretsManager struct{}

func NewEnvSecretsManager() *EnvSecretsManager { return &EnvSecretsManager{} }

func (EnvSecretsManager) GetSecret(_ context.Context, key string) (string, error) {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val, nil
	}
	return "", fmt.Errorf("environment variable %s not set: %w", key, ErrMissingRequiredConfig)
}

// GetSecrets fails on the first unset key
func (em EnvSecretsManager) GetSecrets(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		val, err := em.GetSecret(ctx, key)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
	return out, nil
}

func (EnvSecretsManager) RefreshSecrets(context.Context) error { return nil }

// ServiceTokenSource hands background workers the bearer token they use
// against the CLOTHIFY backend.
type ServiceTokenSource struct {
	secrets SecretsManager
	key     string
}

// NewServiceTokenSource reads key from secrets on every call; caching is
// left to the manager.
func NewServiceTokenSource(secrets SecretsManager, key string) *ServiceTokenSource {
	return &ServiceTokenSource{secrets: secrets, key: key}
}

// Token returns the current service token
func (s *ServiceTokenSource) Token(ctx context.Context) (string, error) {
	token, err := s.secrets.GetSecret(ctx, s.key)
	if err != nil {
		return "", fmt.Errorf("failed to resolve service token: %w", err)
	}
	return token, nil
}
