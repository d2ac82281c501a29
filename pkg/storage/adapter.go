// Package storage persists regman settings through a key-value Adapter.
//
// The Service keeps three records: the registry list, the theme and the cache
// policy. Secrets in the registry list are encrypted with the vault before
// they reach the adapter and decrypted after they are read back.
package storage

// Adapter is a key-value store. Retrieve reports a missing key with
// found == false and no error; Remove of a missing key succeeds.
type Adapter interface {
	Store(key string, data []byte) error
	Retrieve(key string) (data []byte, found bool, err error)
	Remove(key string) error
	Clear() error
	Keys() ([]string, error)
}
