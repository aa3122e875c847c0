package azure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// Sentinel errors for Blob Storage configuration.
var (
	ErrNoServiceURL = errors.New("azure: no storage service URL configured")
	ErrNoContainer  = errors.New("azure: no container name configured")
)

// BlobContainer reads and writes blobs within one storage container.
type BlobContainer struct {
	client    *azblob.Client
	container string
}

// NewBlobContainer creates a container-scoped blob client using a token
// credential. serviceURL is the account endpoint, e.g.
// "https://opsdatalake.blob.core.windows.net".
func NewBlobContainer(serviceURL, containerName string, credential azcore.TokenCredential) (*BlobContainer, error) {
	if serviceURL == "" {
		return nil, ErrNoServiceURL
	}
	if containerName == "" {
		return nil, ErrNoContainer
	}
	if credential == nil {
		return nil, ErrNoCredential
	}

	client, err := azblob.NewClient(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}
	return &BlobContainer{client: client, container: containerName}, nil
}

// NewBlobContainerWithSharedKey creates a container-scoped blob client
// authenticated with the storage account access key.
func NewBlobContainerWithSharedKey(serviceURL, accountName, accountKey, containerName string) (*BlobContainer, error) {
	if serviceURL == "" {
		return nil, ErrNoServiceURL
	}
	if containerName == "" {
		return nil, ErrNoContainer
	}

	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("creating shared key credential: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}
	return &BlobContainer{client: client, container: containerName}, nil
}

// Upload streams content to a blob, overwriting any existing blob at that
// path.
func (b *BlobContainer) Upload(ctx context.Context, blobPath string, content io.Reader) error {
	_, err := b.client.UploadStream(ctx, b.container, blobPath, content, nil)
	if err != nil {
		return fmt.Errorf("uploading blob %q: %w", blobPath, err)
	}
	return nil
}

// UploadBytes writes an in-memory payload to a blob.
func (b *BlobContainer) UploadBytes(ctx context.Context, blobPath string, content []byte) error {
	_, err := b.client.UploadBuffer(ctx, b.container, blobPath, content, nil)
	if err != nil {
		return fmt.Errorf("uploading blob %q: %w", blobPath, err)
	}
	return nil
}

// UploadFile uploads a local file to a blob.
func (b *BlobContainer) UploadFile(ctx context.Context, localPath, blobPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening upload file: %w", err)
	}
	defer file.Close()
	return b.Upload(ctx, blobPath, file)
}

// Download streams a blob's content to w.
func (b *BlobContainer) Download(ctx context.Context, blobPath string, w io.Writer) error {
	resp, err := b.client.DownloadStream(ctx, b.container, blobPath, nil)
	if err != nil {
		return fmt.Errorf("downloading blob %q: %w", blobPath, err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading blob %q: %w", blobPath, err)
	}
	return nil
}

// DownloadToFile saves a blob to a local path.
func (b *BlobContainer) DownloadToFile(ctx context.Context, blobPath, localPath string) error {
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("creating download file: %w", err)
	}

	if err := b.Download(ctx, blobPath, file); err != nil {
		file.Close()
		os.Remove(localPath)
		return err
	}
	return file.Close()
}

// List returns the paths of all blobs under the given prefix.
func (b *BlobContainer) List(ctx context.Context, prefix string) ([]string, error) {
	options := &azblob.ListBlobsFlatOptions{}
	if prefix != "" {
		options.Prefix = &prefix
	}

	paths := make([]string, 0)
	pager := b.client.NewListBlobsFlatPager(b.container, options)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing blobs: %w", err)
		}
		for _, blob := range page.Segment.BlobItems {
			if blob.Name != nil {
				paths = append(paths, *blob.Name)
			}
		}
	}
	return paths, nil
}

// Delete removes the given blobs. It stops at the first failure.
func (b *BlobContainer) Delete(ctx context.Context, blobPaths ...string) error {
	for _, path := range blobPaths {
		if _, err := b.client.DeleteBlob(ctx, b.container, path, nil); err != nil {
			return fmt.Errorf("deleting blob %q: %w", path, err)
		}
	}
	return nil
}
