package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProfile(t *testing.T) {
	r := NewRegistry()

	p, err := r.GetProfile(TenantWM)
	require.NoError(t, err)
	assert.Equal(t, "ct.womovie.cn", p.DefaultDomain)

	p, err = r.GetProfile(TenantHY)
	require.NoError(t, err)
	assert.Equal(t, "zcxzs7.cityfilms.cn", p.DefaultDomain)

	_, err = r.GetProfile("nope")
	assert.ErrorIs(t, err, ErrUnknownTenant)
}

func TestBuildHeaders(t *testing.T) {
	r := NewRegistry()

	headers, err := r.BuildHeaders(TenantWM, "sess-token")
	require.NoError(t, err)
	assert.Equal(t, "sess-token", headers["token"])
	assert.Equal(t, "40000", headers["x-channel-id"])
	assert.Equal(t, "wmyc", headers["tenant-short"])

	// Empty token leaves the header out entirely.
	headers, err = r.BuildHeaders(TenantHY, "")
	require.NoError(t, err)
	_, ok := headers["token"]
	assert.False(t, ok)
}

func TestBuildHeadersDoesNotMutateTemplate(t *testing.T) {
	r := NewRegistry()

	_, err := r.BuildHeaders(TenantWM, "first")
	require.NoError(t, err)

	p, err := r.GetProfile(TenantWM)
	require.NoError(t, err)
	_, ok := p.HeaderTemplate["token"]
	assert.False(t, ok, "token leaked into the shared template")
}

func TestRegisterOverridesProfile(t *testing.T) {
	r := NewRegistry()
	r.Register(Profile{TenantID: TenantWM, DefaultDomain: "staging.example.com"})

	p, err := r.GetProfile(TenantWM)
	require.NoError(t, err)
	assert.Equal(t, "staging.example.com", p.DefaultDomain)
}
