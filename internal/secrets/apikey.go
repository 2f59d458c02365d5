package secrets

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups the engine's secrets in the OS keychain.
	KeyringService = "referral-engine"

	DefaultAPIKeyEnv = "OPENAI_API_KEY"
)

var ErrNoAPIKey = errors.New("generator API key not found (set it in keychain or via env)")

// APIKey looks in the keyring first, then in envVar.
func APIKey(keyringAccount, envVar string) (string, error) {
	if strings.TrimSpace(keyringAccount) != "" {
		key, err := keyring.Get(KeyringService, keyringAccount)
		if err == nil && strings.TrimSpace(key) != "" {
			return key, nil
		}
	}

	if envVar == "" {
		envVar = DefaultAPIKeyEnv
	}
	if key := strings.TrimSpace(os.Getenv(envVar)); key != "" {
		return key, nil
	}

	return "", ErrNoAPIKey
}

func SetAPIKey(keyringAccount, key string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("api key is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, key)
}

func DeleteAPIKey(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount)
}

// KeyringAccount names the keychain entry for a generator endpoint.
func KeyringAccount(baseURL string) string {
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return fmt.Sprintf("referral:generator:%s", strings.ToLower(host))
}
