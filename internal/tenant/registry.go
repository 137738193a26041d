// Package tenant holds the static catalogue of chain operators: which domain
// serves them by default and which headers their mini-program backends expect.
package tenant

import (
	"errors"
	"fmt"
)

var ErrUnknownTenant = errors.New("unknown tenant")

// Tenant identifiers. WM backends answer with a {ret,sub,msg,data} envelope,
// HY backends with {resultCode,resultDesc,resultData}.
const (
	TenantWM = "wmyc"
	TenantHY = "hy"
)

// Profile describes one chain operator. Profiles are immutable; BuildHeaders
// copies the template instead of mutating it.
type Profile struct {
	TenantID       string
	DisplayName    string
	DefaultDomain  string
	TicketPath     string
	HeaderTemplate map[string]string
}

type Registry struct {
	profiles map[string]Profile
}

// NewRegistry loads the built-in tenant catalogue.
func NewRegistry() *Registry {
	return &Registry{
		profiles: map[string]Profile{
			TenantWM: {
				TenantID:      TenantWM,
				DisplayName:   "WM Cinemas",
				DefaultDomain: "ct.womovie.cn",
				TicketPath:    "/ticket/wmyc",
				HeaderTemplate: map[string]string{
					"User-Agent":       wxUserAgent,
					"content-type":     "multipart/form-data",
					"x-channel-id":     "40000",
					"tenant-short":     "wmyc",
					"client-version":   "4.0",
					"xweb_xhr":         "1",
					"x-requested-with": "wxapp",
					"referer":          "https://servicewechat.com/wx4bb9342b9d97d53c/33/page-frame.html",
					"accept-language":  "zh-CN,zh;q=0.9",
				},
			},
			TenantHY: {
				TenantID:      TenantHY,
				DisplayName:   "HY Cinemas",
				DefaultDomain: "zcxzs7.cityfilms.cn",
				TicketPath:    "/MiniTicket/index.php",
				HeaderTemplate: map[string]string{
					"User-Agent":       wxUserAgent,
					"Accept":           "application/json",
					"Content-Type":     "application/x-www-form-urlencoded",
					"xweb_xhr":         "1",
					"x-requested-with": "wxapp",
					"Referer":          "https://servicewechat.com/wx03aeb42bd6a3580e/1/page-frame.html",
					"Accept-Language":  "zh-CN,zh;q=0.9",
				},
			},
		},
	}
}

const wxUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36 MicroMessenger/7.0.20.1781(0x6700143B) NetType/WIFI MiniProgramEnv/Windows WindowsWechat/WMPF WindowsWechat(0x63090c33)XWEB/13639"

// Register adds or replaces a tenant profile.
func (r *Registry) Register(p Profile) {
	r.profiles[p.TenantID] = p
}

func (r *Registry) GetProfile(tenantID string) (Profile, error) {
	p, ok := r.profiles[tenantID]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownTenant, tenantID)
	}
	return p, nil
}

// BuildHeaders merges the tenant's header template with the caller-supplied
// session token. The template itself is never mutated.
func (r *Registry) BuildHeaders(tenantID, sessionToken string) (map[string]string, error) {
	p, err := r.GetProfile(tenantID)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(p.HeaderTemplate)+1)
	for k, v := range p.HeaderTemplate {
		headers[k] = v
	}
	if sessionToken != "" {
		headers["token"] = sessionToken
	}
	return headers, nil
}

// TenantIDs lists the registered tenants in no particular order.
func (r *Registry) TenantIDs() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	return ids
}
