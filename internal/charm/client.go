// ABOUTME: Charm KV client wrapper for cloud-synced storage
// ABOUTME: SSH-key authenticated key/value store that backs the charm Index
package charm

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
	"github.com/dgraph-io/badger/v3"
)

// Key prefixes for different entity types
const (
	DevicePrefix = "device:"
	FactPrefix   = "fact:"
	MetaPrefix   = "meta:"
)

// Config holds charm client configuration
type Config struct {
	Host     string
	DBName   string
	AutoSync bool
}

// DefaultConfig returns default configuration for charm client
func DefaultConfig() *Config {
	host := os.Getenv("CHARM_HOST")
	if host == "" {
		host = "charm.2389.dev"
	}
	return &Config{
		Host:     host,
		DBName:   "homefacts",
		AutoSync: true,
	}
}

// Store is the key/value surface the Index needs. *Client implements it.
type Store interface {
	Set(key string, value []byte) error
	// Get returns nil, nil when the key does not exist.
	Get(key string) ([]byte, error)
	Delete(key string) error
	ListKeys(prefix string) ([]string, error)
}

// Batcher is implemented by stores that can coalesce the cloud sync of several writes.
type Batcher interface {
	Batch(fn func() error) error
}

// Client wraps charm KV for storage operations
type Client struct {
	kv     *kv.KV
	config *Config
	mu     sync.Mutex

	// writes inside Batch mark the client dirty instead of syncing each time
	depth atomic.Int32
	dirty atomic.Bool
}

var (
	_ Store   = (*Client)(nil)
	_ Batcher = (*Client)(nil)
)

// NewClient creates a new charm client with the given config
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	// kv reads CHARM_HOST when it opens
	_ = os.Setenv("CHARM_HOST", cfg.Host)

	db, err := kv.OpenWithDefaults(cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to open charm kv: %w", err)
	}

	c := &Client{
		kv:     db,
		config: cfg,
	}

	// Pull remote data on startup
	if cfg.AutoSync {
		_ = db.Sync()
	}

	return c, nil
}

// Config returns the configuration the client was opened with
func (c *Client) Config() *Config {
	return c.config
}

// Close closes the KV database
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kv != nil {
		err := c.kv.Close()
		c.kv = nil
		return err
	}
	return nil
}

// syncIfEnabled syncs to cloud after writes. Inside a batch it only records the write.
func (c *Client) syncIfEnabled() {
	if !c.config.AutoSync {
		return
	}
	if c.depth.Load() > 0 {
		c.dirty.Store(true)
		return
	}
	_ = c.kv.Sync()
}

// Batch runs fn and syncs once afterwards if fn wrote anything. Batches nest.
func (c *Client) Batch(fn func() error) error {
	c.depth.Add(1)
	err := fn()
	if c.depth.Add(-1) == 0 && c.dirty.Swap(false) && c.config.AutoSync {
		c.mu.Lock()
		if c.kv != nil {
			_ = c.kv.Sync()
		}
		c.mu.Unlock()
	}
	return err
}

// ID returns the charm user ID
func (c *Client) ID() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("failed to create charm client: %w", err)
	}
	return cc.ID()
}

// Set stores a value with the given key
func (c *Client) Set(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.Set([]byte(key), value); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	c.syncIfEnabled()
	return nil
}

// Get retrieves a value by key
func (c *Client) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, err := c.kv.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return v, err
}

// Delete removes a key
func (c *Client) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.Delete([]byte(key)); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	c.syncIfEnabled()
	return nil
}

// ListKeys returns all keys with the given prefix
func (c *Client) ListKeys(prefix string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.kv.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	var result []string
	for _, key := range keys {
		keyStr := string(key)
		if strings.HasPrefix(keyStr, prefix) {
			result = append(result, keyStr)
		}
	}
	return result, nil
}

// Sync manually triggers a sync with the cloud
func (c *Client) Sync() error {
	return c.kv.Sync()
}

// Reset wipes all local data (nuclear option)
func (c *Client) Reset() error {
	return c.kv.Reset()
}

// GetAuthorizedKeys returns the list of linked devices/keys
func (c *Client) GetAuthorizedKeys() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("failed to create charm client: %w", err)
	}
	return cc.AuthorizedKeys()
}

// SetJSON marshals and stores a value as JSON
func SetJSON(s Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return s.Set(key, data)
}

// GetJSON retrieves and unmarshals a JSON value. found is false for a missing key.
func GetJSON(s Store, key string, dest any) (found bool, err error) {
	data, err := s.Get(key)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

// DeviceKey generates a key for a device collection
func DeviceKey(deviceID string) string {
	return DevicePrefix + deviceID
}

// DeviceFactPrefix is the prefix shared by every fact of one device
func DeviceFactPrefix(deviceID string) string {
	return FactPrefix + deviceID + ":"
}

// FactKey generates a key for a fact within a device
func FactKey(deviceID, factID string) string {
	return DeviceFactPrefix(deviceID) + factID
}

// SeqKey holds the monotonic counter used to order devices and facts
func SeqKey() string {
	return MetaPrefix + "seq"
}
