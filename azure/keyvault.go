package azure

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// Sentinel errors for Key Vault configuration.
var (
	ErrNoVaultURL   = errors.New("azure: no vault URL configured")
	ErrNoCredential = errors.New("azure: no credential configured")
)

// KeyVault manages secrets in one Azure Key Vault.
type KeyVault struct {
	client *azsecrets.Client
}

// NewKeyVault creates a secrets client for the vault at vaultURL, e.g.
// "https://ops-vault.vault.azure.net".
func NewKeyVault(vaultURL string, credential azcore.TokenCredential) (*KeyVault, error) {
	if vaultURL == "" {
		return nil, ErrNoVaultURL
	}
	if credential == nil {
		return nil, ErrNoCredential
	}

	client, err := azsecrets.NewClient(vaultURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("creating key vault client: %w", err)
	}
	return &KeyVault{client: client}, nil
}

// GetSecret retrieves the latest version of a secret.
func (kv *KeyVault) GetSecret(ctx context.Context, name string) (string, error) {
	resp, err := kv.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		return "", fmt.Errorf("getting secret %q: %w", name, err)
	}
	if resp.Value == nil {
		return "", nil
	}
	return *resp.Value, nil
}

// SetSecret creates a secret or adds a new version to an existing one.
func (kv *KeyVault) SetSecret(ctx context.Context, name, value string) error {
	_, err := kv.client.SetSecret(ctx, name, azsecrets.SetSecretParameters{Value: &value}, nil)
	if err != nil {
		return fmt.Errorf("setting secret %q: %w", name, err)
	}
	return nil
}

// DeleteSecret deletes a secret. On soft-delete enabled vaults the secret
// stays recoverable until purged.
func (kv *KeyVault) DeleteSecret(ctx context.Context, name string) error {
	_, err := kv.client.DeleteSecret(ctx, name, nil)
	if err != nil {
		return fmt.Errorf("deleting secret %q: %w", name, err)
	}
	return nil
}

// RecoverSecret recovers a soft-deleted secret.
func (kv *KeyVault) RecoverSecret(ctx context.Context, name string) error {
	_, err := kv.client.RecoverDeletedSecret(ctx, name, nil)
	if err != nil {
		return fmt.Errorf("recovering secret %q: %w", name, err)
	}
	return nil
}

// ListSecretNames lists the names of all secrets in the vault.
func (kv *KeyVault) ListSecretNames(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	pager := kv.client.NewListSecretPropertiesPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing secrets: %w", err)
		}
		for _, secret := range page.Value {
			if secret.ID != nil {
				names = append(names, secret.ID.Name())
			}
		}
	}
	return names, nil
}

// ListDeletedSecretNames lists the names of soft-deleted secrets.
func (kv *KeyVault) ListDeletedSecretNames(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	pager := kv.client.NewListDeletedSecretPropertiesPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing deleted secrets: %w", err)
		}
		for _, secret := range page.Value {
			if secret.ID != nil {
				names = append(names, secret.ID.Name())
			}
		}
	}
	return names, nil
}
