package voucher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinetick/cinetick/internal/adapter"
	"github.com/cinetick/cinetick/internal/domain"
	"github.com/cinetick/cinetick/pkg/apperrors"
	"github.com/cinetick/cinetick/pkg/logger"
	"github.com/cinetick/cinetick/pkg/retry"
)

type fakeWallet struct {
	pages map[int]*adapter.VoucherPage
	fail  map[int]error
	calls []int
}

func (f *fakeWallet) ListVoucherPage(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID string, pageIndex int) (*adapter.VoucherPage, error) {
	f.calls = append(f.calls, pageIndex)
	if err, ok := f.fail[pageIndex]; ok {
		return nil, err
	}
	page, ok := f.pages[pageIndex]
	if !ok {
		return &adapter.VoucherPage{Page: domain.PageInfo{PageNum: pageIndex, TotalPage: len(f.pages)}}, nil
	}
	return page, nil
}

func voucherNamed(code, name string, status domain.VoucherStatus, expire time.Time) domain.Voucher {
	return domain.Voucher{Code: code, Name: name, Status: status, ExpireTime: expire}
}

func newTestService(w Wallet) *Service {
	policy := retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}
	return NewService(w, policy, logger.InitializeTestZapLogger())
}

func threePages(future time.Time) map[int]*adapter.VoucherPage {
	return map[int]*adapter.VoucherPage{
		1: {
			Page: domain.PageInfo{PageNum: 1, TotalPage: 3},
			Vouchers: []domain.Voucher{
				voucherNamed("V-001", "A", domain.VoucherUnused, future),
				voucherNamed("V-002", "A", domain.VoucherUsed, future),
			},
		},
		2: {
			Page: domain.PageInfo{PageNum: 2, TotalPage: 3},
			Vouchers: []domain.Voucher{
				// V-002 repeats across the page boundary.
				voucherNamed("V-002", "A", domain.VoucherUsed, future),
				voucherNamed("V-003", "B", domain.VoucherUnused, future),
			},
		},
		3: {
			Page: domain.PageInfo{PageNum: 3, TotalPage: 3},
			Vouchers: []domain.Voucher{
				voucherNamed("V-004", "B", domain.VoucherDisabled, future),
			},
		},
	}
}

func TestFetchAllWalksEveryPageSequentially(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	w := &fakeWallet{pages: threePages(future)}
	s := newTestService(w)

	vouchers, err := s.FetchAll(context.Background(), domain.AccountSession{}, "wmyc", "880")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, w.calls)
	require.Len(t, vouchers, 4, "cross-page duplicate collapses")
	assert.Len(t, s.Snapshot(), 4)
}

func TestFetchAllPartialFailureKeepsCompletedPages(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	w := &fakeWallet{
		pages: threePages(future),
		fail:  map[int]error{2: errors.New("boom")},
	}
	s := newTestService(w)
	s.Seed([]domain.Voucher{voucherNamed("OLD", "old", domain.VoucherUnused, future)})

	vouchers, err := s.FetchAll(context.Background(), domain.AccountSession{}, "wmyc", "880")

	var pf *apperrors.PartialFetchError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, 3, pf.TotalPages)
	assert.Equal(t, []int{1}, pf.Pages)
	assert.Len(t, vouchers, 2, "page 1 results are still returned")

	// A failed walk must not clobber the previous snapshot.
	require.Len(t, s.Snapshot(), 1)
	assert.Equal(t, "OLD", s.Snapshot()[0].Code)
}

func TestFetchAllRetriesTransportFailures(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	transportErr := apperrors.NewTransportError("voucherPage", "https://x", errors.New("timeout"))

	w := &fakeWallet{pages: threePages(future), fail: map[int]error{2: transportErr}}
	s := NewService(w, retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}, logger.InitializeTestZapLogger())

	_, err := s.FetchAll(context.Background(), domain.AccountSession{}, "wmyc", "880")
	require.Error(t, err)
	// Page 2 was attempted twice before the walk gave up.
	assert.Equal(t, []int{1, 2, 2}, w.calls)
}

func TestFilter(t *testing.T) {
	now := time.Now()
	s := newTestService(&fakeWallet{})
	s.Seed([]domain.Voucher{
		voucherNamed("V-1", "IMAX兑换券", domain.VoucherUnused, now.Add(time.Hour)),
		voucherNamed("V-2", "IMAX兑换券", domain.VoucherUnused, now.Add(-time.Hour)),
		voucherNamed("V-3", "小吃券", domain.VoucherUsed, now.Add(time.Hour)),
	})

	unused := domain.VoucherUnused
	assert.Len(t, s.Filter(FilterOptions{Status: &unused, Now: now}), 2)

	notExpired := false
	got := s.Filter(FilterOptions{Status: &unused, Expired: &notExpired, Now: now})
	require.Len(t, got, 1)
	assert.Equal(t, "V-1", got[0].Code)

	assert.Len(t, s.Filter(FilterOptions{Name: "imax", Now: now}), 2)
	assert.Empty(t, s.Filter(FilterOptions{Name: "nope", Now: now}))
}

func TestStats(t *testing.T) {
	now := time.Now()
	s := newTestService(&fakeWallet{})
	s.Seed([]domain.Voucher{
		voucherNamed("V-1", "A", domain.VoucherUnused, now.Add(time.Hour)),
		voucherNamed("V-2", "A", domain.VoucherUnused, now.Add(-time.Hour)),
		voucherNamed("V-3", "B", domain.VoucherUsed, now.Add(time.Hour)),
		voucherNamed("V-4", "B", domain.VoucherDisabled, now.Add(time.Hour)),
	})

	stats := s.Stats(now)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Valid)
	assert.Equal(t, 1, stats.Used)
	assert.Equal(t, 2, stats.Disabled, "expired unused voucher counts as not usable")
	assert.Equal(t, 1, stats.Expired)
	assert.InDelta(t, 0.25, stats.ValidRate, 1e-9)
	assert.Equal(t, map[string]int{"A": 2, "B": 2}, stats.ByName)
}

func TestPickUsableSortsSoonestExpiringFirst(t *testing.T) {
	now := time.Now()
	s := newTestService(&fakeWallet{})
	s.Seed([]domain.Voucher{
		voucherNamed("LATE", "A", domain.VoucherUnused, now.Add(72*time.Hour)),
		voucherNamed("NEVER", "A", domain.VoucherUnused, time.Time{}),
		voucherNamed("SOON", "A", domain.VoucherUnused, now.Add(time.Hour)),
		voucherNamed("USED", "A", domain.VoucherUsed, now.Add(time.Hour)),
	})

	got := s.PickUsable(now)
	require.Len(t, got, 3)
	assert.Equal(t, "SOON", got[0].Code)
	assert.Equal(t, "LATE", got[1].Code)
	assert.Equal(t, "NEVER", got[2].Code)
}
