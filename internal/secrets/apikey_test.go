package secrets_test

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/navapbc/labs-referral-pilot/internal/secrets"
)

func TestAPIKey_KeyringThenEnv(t *testing.T) {
	keyring.MockInit()
	t.Setenv("REFERRAL_TEST_KEY", "from-env")
	account := secrets.KeyringAccount("https://api.openai.com")

	got, err := secrets.APIKey(account, "REFERRAL_TEST_KEY")
	if err != nil || got != "from-env" {
		t.Fatalf("APIKey = %q, %v; want env fallback", got, err)
	}

	if err := secrets.SetAPIKey(account, "from-keyring"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	got, err = secrets.APIKey(account, "REFERRAL_TEST_KEY")
	if err != nil || got != "from-keyring" {
		t.Fatalf("APIKey = %q, %v; want keyring value", got, err)
	}

	if err := secrets.DeleteAPIKey(account); err != nil {
		t.Fatalf("DeleteAPIKey: %v", err)
	}
	t.Setenv("REFERRAL_TEST_KEY", "")
	if _, err := secrets.APIKey(account, "REFERRAL_TEST_KEY"); !errors.Is(err, secrets.ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestSetAPIKey_RejectsBlank(t *testing.T) {
	keyring.MockInit()
	if err := secrets.SetAPIKey("", "k"); err == nil {
		t.Error("blank account accepted")
	}
	if err := secrets.SetAPIKey("acct", "  "); err == nil {
		t.Error("blank key accepted")
	}
}

func TestKeyringAccount(t *testing.T) {
	if got := secrets.KeyringAccount("https://API.openai.com/v1"); got != "referral:generator:api.openai.com" {
		t.Errorf("KeyringAccount = %q", got)
	}
}
