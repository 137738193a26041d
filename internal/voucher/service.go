// Package voucher maintains a local view of an account's voucher wallet:
// full paginated fetches, filtering and usage statistics. The wallet is a
// snapshot; every successful FetchAll replaces it wholesale.
package voucher

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cinetick/cinetick/internal/adapter"
	"github.com/cinetick/cinetick/internal/domain"
	"github.com/cinetick/cinetick/pkg/apperrors"
	"github.com/cinetick/cinetick/pkg/logger"
	"github.com/cinetick/cinetick/pkg/retry"
)

// Wallet is the backend surface the service needs. *adapter.UnifiedCinemaAdapter
// satisfies it.
type Wallet interface {
	ListVoucherPage(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID string, pageIndex int) (*adapter.VoucherPage, error)
}

type Service struct {
	wallet Wallet
	policy retry.Policy
	l      logger.Logger

	mu       sync.RWMutex
	snapshot []domain.Voucher
}

func NewService(wallet Wallet, policy retry.Policy, l logger.Logger) *Service {
	return &Service{
		wallet: wallet,
		policy: policy,
		l:      l,
	}
}

// FetchAll walks every wallet page in order, starting at page 1 and trusting
// the total_page the first response reports. Pages are fetched sequentially;
// the backend rejects concurrent wallet reads on the same session. Duplicate
// codes across page boundaries collapse to their first occurrence.
//
// On a mid-walk failure the accumulated vouchers are returned together with a
// *apperrors.PartialFetchError naming the completed pages; the stored
// snapshot is only replaced when the walk finishes cleanly.
func (s *Service) FetchAll(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID string) ([]domain.Voucher, error) {
	var (
		vouchers  []domain.Voucher
		seen      = map[string]struct{}{}
		completed []int
	)

	totalPage := 1
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		var page *adapter.VoucherPage
		err := s.policy.Do(ctx, func(ctx context.Context) error {
			var err error
			page, err = s.wallet.ListVoucherPage(ctx, sess, tenantID, cinemaID, pageIndex)
			return err
		})
		if err != nil {
			s.l.Warnf(ctx, "voucher fetch stopped at page %d/%d: %v", pageIndex, totalPage, err)
			return vouchers, &apperrors.PartialFetchError{
				TotalPages: totalPage,
				Pages:      completed,
				Err:        err,
			}
		}

		if pageIndex == 1 && page.Page.TotalPage > 0 {
			totalPage = page.Page.TotalPage
		}
		for _, v := range page.Vouchers {
			if _, dup := seen[v.Code]; dup {
				continue
			}
			seen[v.Code] = struct{}{}
			vouchers = append(vouchers, v)
		}
		completed = append(completed, pageIndex)
	}

	s.mu.Lock()
	s.snapshot = append([]domain.Voucher(nil), vouchers...)
	s.mu.Unlock()

	s.l.Debugf(ctx, "voucher wallet refreshed: %d vouchers over %d pages", len(vouchers), totalPage)
	return vouchers, nil
}

// Snapshot returns a copy of the last successfully fetched wallet.
func (s *Service) Snapshot() []domain.Voucher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Voucher(nil), s.snapshot...)
}

// Seed replaces the stored wallet without touching the backend. Used to
// restore a persisted snapshot on startup.
func (s *Service) Seed(vouchers []domain.Voucher) {
	s.mu.Lock()
	s.snapshot = append([]domain.Voucher(nil), vouchers...)
	s.mu.Unlock()
}

// FilterOptions narrows the snapshot. Nil fields mean "no constraint".
type FilterOptions struct {
	Status  *domain.VoucherStatus
	Expired *bool
	Name    string
	Now     time.Time
}

// Filter applies opts to the stored snapshot. Name matches as a
// case-insensitive substring. Expiry is judged against opts.Now, defaulting
// to the current time.
func (s *Service) Filter(opts FilterOptions) []domain.Voucher {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	name := strings.ToLower(strings.TrimSpace(opts.Name))

	var out []domain.Voucher
	for _, v := range s.Snapshot() {
		if opts.Status != nil && v.Status != *opts.Status {
			continue
		}
		if opts.Expired != nil && v.Expired(now) != *opts.Expired {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(v.Name), name) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Statistics summarizes the stored snapshot.
type Statistics struct {
	Total     int            `json:"total"`
	Valid     int            `json:"valid"`
	Used      int            `json:"used"`
	Disabled  int            `json:"disabled"`
	Expired   int            `json:"expired"`
	ValidRate float64        `json:"valid_rate"`
	ByName    map[string]int `json:"by_name"`
}

// Stats computes wallet statistics at the given time. A voucher counts as
// valid when it is unused and not expired.
func (s *Service) Stats(now time.Time) Statistics {
	if now.IsZero() {
		now = time.Now()
	}

	stats := Statistics{ByName: map[string]int{}}
	for _, v := range s.Snapshot() {
		stats.Total++
		stats.ByName[v.Name]++
		if v.Expired(now) {
			stats.Expired++
		}
		switch {
		case v.Usable(now):
			stats.Valid++
		case v.Status == domain.VoucherUsed:
			stats.Used++
		default:
			stats.Disabled++
		}
	}
	if stats.Total > 0 {
		stats.ValidRate = float64(stats.Valid) / float64(stats.Total)
	}
	return stats
}

// PickUsable returns the usable vouchers sorted soonest-expiring first, so
// the caller binds the voucher closest to expiry.
func (s *Service) PickUsable(now time.Time) []domain.Voucher {
	if now.IsZero() {
		now = time.Now()
	}

	var out []domain.Voucher
	for _, v := range s.Snapshot() {
		if v.Usable(now) {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		// Vouchers without expiry sort last.
		if out[i].ExpireTime.IsZero() {
			return false
		}
		if out[j].ExpireTime.IsZero() {
			return true
		}
		return out[i].ExpireTime.Before(out[j].ExpireTime)
	})
	return out
}
