package storage

import "errors"

// ErrNotExist is returned by Retrieve when no value is stored under a key
var ErrNotExist = errors.New("storage: key does not exist")

// StorageInterface defines the contract for storage operations
type StorageInterface interface {
	Store(key string, data []byte) error
	Retrieve(key string) ([]byte, error)
	List(prefix string) ([]string, error)
	Delete(key string) error
}
