package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"

	"github.com/tbourn/go-flight-scraper/internal/domain"
)

// DefaultConnectTimeout bounds the initial PING of a new Valkey client.
const DefaultConnectTimeout = 5 * time.Second

// ValkeyConfig holds the connection settings for the Valkey backend.
type ValkeyConfig struct {
	Address        string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration // defaults to DefaultConnectTimeout
}

// ValkeyStore keeps both tiers in Valkey. Expiry is delegated to the server
// with SET ... EX, so TTLs have one-second granularity.
type ValkeyStore struct {
	client valkeylib.Client
	prefix string
	ttl    time.Duration
}

// NewValkeyStore connects to Valkey and verifies the connection with PING.
func NewValkeyStore(cfg ValkeyConfig, ttl time.Duration) (*ValkeyStore, error) {
	if ttl < time.Second {
		return nil, fmt.Errorf("valkey cache: ttl %v below one second", ttl)
	}
	opts := valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	client, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping valkey (timeout: %v): %w", timeout, err)
	}

	prefix := strings.TrimSuffix(cfg.KeyPrefix, ":")
	if prefix != "" {
		prefix += ":"
	}
	return &ValkeyStore{client: client, prefix: prefix, ttl: ttl}, nil
}

func (v *ValkeyStore) key(parts ...string) string {
	return v.prefix + strings.Join(parts, ":")
}

func (v *ValkeyStore) get(ctx context.Context, tier, key string) (domain.CacheEntry, bool, error) {
	data, err := v.client.Do(ctx, v.client.B().Get().Key(v.key(tier, key)).Build()).AsBytes()
	if valkeylib.IsValkeyNil(err) {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("failed to get %s entry: %w", tier, err)
	}
	var e domain.CacheEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("failed to unmarshal %s entry: %w", tier, err)
	}
	return e, true, nil
}

func (v *ValkeyStore) set(tier string, e domain.CacheEntry, ttl time.Duration) (valkeylib.Completed, error) {
	if e.Key == "" {
		return valkeylib.Completed{}, ErrEmptyKey
	}
	data, err := json.Marshal(e)
	if err != nil {
		return valkeylib.Completed{}, fmt.Errorf("failed to marshal %s entry: %w", tier, err)
	}
	return v.client.B().Set().Key(v.key(tier, e.Key)).Value(string(data)).Ex(ttl).Build(), nil
}

// GetFresh returns the fresh entry for key.
func (v *ValkeyStore) GetFresh(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	return v.get(ctx, domain.TierFresh, key)
}

// GetStale returns the stale-shadow entry for key.
func (v *ValkeyStore) GetStale(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	return v.get(ctx, domain.TierStale, key)
}

// PutFresh writes the fresh entry and the WriteMark in one round trip.
func (v *ValkeyStore) PutFresh(ctx context.Context, e domain.CacheEntry) error {
	cmd, err := v.set(domain.TierFresh, e, v.ttl)
	if err != nil {
		return err
	}
	mark, err := json.Marshal(domain.WriteMark{Key: e.Key, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	markCmd := v.client.B().Set().Key(v.key("meta", "last_write")).Value(string(mark)).Build()
	for _, res := range v.client.DoMulti(ctx, cmd, markCmd) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("failed to save fresh entry: %w", err)
		}
	}
	return nil
}

// PutStale writes the stale-shadow entry.
func (v *ValkeyStore) PutStale(ctx context.Context, e domain.CacheEntry) error {
	cmd, err := v.set(domain.TierStale, e, staleTTL(v.ttl))
	if err != nil {
		return err
	}
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to save stale entry: %w", err)
	}
	return nil
}

// LastWrite reads the WriteMark.
func (v *ValkeyStore) LastWrite(ctx context.Context) (domain.WriteMark, bool, error) {
	data, err := v.client.Do(ctx, v.client.B().Get().Key(v.key("meta", "last_write")).Build()).AsBytes()
	if valkeylib.IsValkeyNil(err) {
		return domain.WriteMark{}, false, nil
	}
	if err != nil {
		return domain.WriteMark{}, false, fmt.Errorf("failed to get last write: %w", err)
	}
	var mark domain.WriteMark
	if err := json.Unmarshal(data, &mark); err != nil {
		return domain.WriteMark{}, false, fmt.Errorf("failed to unmarshal last write: %w", err)
	}
	return mark, true, nil
}

// TTL is the fresh-tier lifetime.
func (v *ValkeyStore) TTL() time.Duration { return v.ttl }

// Flush deletes every key under the store prefix using SCAN.
func (v *ValkeyStore) Flush(ctx context.Context) error {
	if v.prefix == "" {
		return errors.New("valkey cache: refusing to flush without a key prefix")
	}
	var cursor uint64
	for {
		cmd := v.client.B().Scan().Cursor(cursor).Match(v.prefix + "*").Count(100).Build()
		res, err := v.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}
		if len(res.Elements) > 0 {
			if err := v.client.Do(ctx, v.client.B().Del().Key(res.Elements...).Build()).Error(); err != nil {
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
		}
		cursor = res.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

// Close closes the client.
func (v *ValkeyStore) Close() error {
	v.client.Close()
	return nil
}
