// Package azure wraps the Azure services used by field data pipelines:
// Key Vault secrets, Blob Storage containers, Azure SQL and Azure OpenAI.
package azure

import (
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// NewCredential returns the token credential matching the runtime
// environment: the Azure CLI identity for local runs, the default
// credential chain (environment, workload identity, managed identity)
// otherwise.
func NewCredential(localRun bool) (azcore.TokenCredential, error) {
	if localRun {
		return azidentity.NewAzureCLICredential(nil)
	}
	return azidentity.NewDefaultAzureCredential(nil)
}

// NewManagedIdentityCredential returns a managed identity credential. A
// non-empty clientID selects a user-assigned identity.
func NewManagedIdentityCredential(clientID string) (azcore.TokenCredential, error) {
	if clientID == "" {
		return azidentity.NewManagedIdentityCredential(nil)
	}
	return azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
		ID: azidentity.ClientID(clientID),
	})
}
