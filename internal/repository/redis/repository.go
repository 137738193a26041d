// Package redis persists the pieces of state worth surviving a restart: the
// resolver's cinema-domain cache, per-account voucher wallets and tracked
// orders.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cinetick/cinetick/internal/domain"
)

const (
	domainsKey     = "cinetick:resolver:domains"
	walletKeyPfx   = "cinetick:wallet:"
	orderKeyPfx    = "cinetick:order:"
	liveKeyPfx     = "cinetick:order:live:"
	walletTTL      = 24 * time.Hour
	orderRetention = 7 * 24 * time.Hour
)

type Repository struct {
	cli *redis.Client
}

func NewRepository(cli *redis.Client) *Repository {
	return &Repository{cli: cli}
}

// SaveDomains overwrites the persisted domain cache with the given snapshot.
func (r *Repository) SaveDomains(ctx context.Context, domains map[string]string) error {
	if len(domains) == 0 {
		return r.cli.Del(ctx, domainsKey).Err()
	}
	pairs := make([]any, 0, len(domains)*2)
	for k, v := range domains {
		pairs = append(pairs, k, v)
	}
	pipe := r.cli.TxPipeline()
	pipe.Del(ctx, domainsKey)
	pipe.HSet(ctx, domainsKey, pairs...)
	_, err := pipe.Exec(ctx)
	return err
}

// LoadDomains returns the persisted domain cache, empty when none was saved.
func (r *Repository) LoadDomains(ctx context.Context) (map[string]string, error) {
	m, err := r.cli.HGetAll(ctx, domainsKey).Result()
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SaveWallet persists an account's voucher snapshot for a day.
func (r *Repository) SaveWallet(ctx context.Context, accountRef string, vouchers []domain.Voucher) error {
	b, err := json.Marshal(vouchers)
	if err != nil {
		return err
	}
	return r.cli.Set(ctx, walletKeyPfx+accountRef, b, walletTTL).Err()
}

// LoadWallet returns the persisted voucher snapshot, nil when absent.
func (r *Repository) LoadWallet(ctx context.Context, accountRef string) ([]domain.Voucher, error) {
	b, err := r.cli.Get(ctx, walletKeyPfx+accountRef).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var vouchers []domain.Voucher
	if err := json.Unmarshal(b, &vouchers); err != nil {
		return nil, err
	}
	return vouchers, nil
}

func liveKey(accountRef, cinemaID string) string {
	return liveKeyPfx + accountRef + ":" + cinemaID
}

// Save implements order.Store. Live orders maintain a per-account/cinema
// pointer so FindLive is a single lookup.
func (r *Repository) Save(ctx context.Context, o *domain.Order) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	pipe := r.cli.TxPipeline()
	pipe.Set(ctx, orderKeyPfx+o.OrderID, b, orderRetention)
	if o.IsLive() {
		pipe.Set(ctx, liveKey(o.AccountRef, o.CinemaID), o.OrderID, orderRetention)
	} else {
		pipe.Del(ctx, liveKey(o.AccountRef, o.CinemaID))
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Get implements order.Store, returning nil for unknown orders.
func (r *Repository) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	b, err := r.cli.Get(ctx, orderKeyPfx+orderID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var o domain.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// FindLive implements order.Store.
func (r *Repository) FindLive(ctx context.Context, accountRef, cinemaID string) (*domain.Order, error) {
	orderID, err := r.cli.Get(ctx, liveKey(accountRef, cinemaID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o, err := r.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || !o.IsLive() {
		return nil, nil
	}
	return o, nil
}
