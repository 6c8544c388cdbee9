package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/sirupsen/logrus"
)

const azureOpTimeout = 30 * time.Second

// AzureStorage keeps each key as a JSON blob in one container
type AzureStorage struct {
	client        *azblob.Client
	containerName string
}

// Ensure AzureStorage implements StorageInterface
var _ StorageInterface = (*AzureStorage)(nil)

// NewAzureStorage creates a new Azure Storage client using the default credential chain
func NewAzureStorage(accountName, containerName string) (*AzureStorage, error) {
	if accountName == "" {
		return nil, fmt.Errorf("storage account name is required")
	}

	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
	client, err := azblob.NewClient(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
	}

	storage := &AzureStorage{
		client:        client,
		containerName: containerName,
	}

	if err := storage.ensureContainer(); err != nil {
		return nil, fmt.Errorf("failed to ensure container exists: %w", err)
	}

	return storage, nil
}

func (s *AzureStorage) ensureContainer() error {
	ctx, cancel := context.WithTimeout(context.Background(), azureOpTimeout)
	defer cancel()

	_, err := s.client.CreateContainer(ctx, s.containerName, nil)
	if err != nil {
		if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return fmt.Errorf("failed to create container: %w", err)
		}
		logrus.Debugf("Container %s already exists", s.containerName)
	} else {
		logrus.Infof("Created container %s", s.containerName)
	}

	return nil
}

func (s *AzureStorage) blobName(key string) string {
	return key + ".json"
}

// Store uploads the value, replacing any previous blob
func (s *AzureStorage) Store(key string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), azureOpTimeout)
	defer cancel()

	_, err := s.client.UploadBuffer(ctx, s.containerName, s.blobName(key), data, &azblob.UploadBufferOptions{
		BlockSize:   int64(1024 * 1024),
		Concurrency: 3,
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob %s: %w", key, err)
	}

	logrus.Debugf("Stored %s in Azure Blob Storage (%d bytes)", key, len(data))
	return nil
}

// Retrieve downloads the value stored under key
func (s *AzureStorage) Retrieve(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), azureOpTimeout)
	defer cancel()

	response, err := s.client.DownloadStream(ctx, s.containerName, s.blobName(key), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("failed to download blob %s: %w", key, err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob content: %w", err)
	}

	return data, nil
}

// List returns the keys that start with prefix
func (s *AzureStorage) List(prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), azureOpTimeout)
	defer cancel()

	var keys []string
	pager := s.client.NewListBlobsFlatPager(s.containerName, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}

		for _, blob := range page.Segment.BlobItems {
			if blob.Name != nil {
				keys = append(keys, trimJSONSuffix(*blob.Name))
			}
		}
	}

	return keys, nil
}

// Delete removes the blob for key. Deleting a missing key is not an error.
func (s *AzureStorage) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), azureOpTimeout)
	defer cancel()

	_, err := s.client.DeleteBlob(ctx, s.containerName, s.blobName(key), nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}

	logrus.Debugf("Deleted %s from Azure Blob Storage", key)
	return nil
}
