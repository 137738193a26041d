// Package adapter normalizes the two backend wire formats into the canonical
// entities. One code path serves both tenants: resolve domain, build tenant
// headers, execute, branch on envelope shape, map fields through the alias
// tables.
package adapter

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cinetick/cinetick/internal/domain"
	"github.com/cinetick/cinetick/internal/resolver"
	"github.com/cinetick/cinetick/internal/tenant"
	"github.com/cinetick/cinetick/pkg/apperrors"
	"github.com/cinetick/cinetick/pkg/logger"
)

// Per-tenant endpoint tables. {cinema_id} is substituted per call.
var endpoints = map[string]map[string]string{
	tenant.TenantWM: {
		"cities":     "/ticket/wmyc/citys/",
		"cinemas":    "/ticket/wmyc/cinemas/",
		"cinemaInfo": "/ticket/wmyc/cinema/{cinema_id}/info/",
		"movies":     "/ticket/wmyc/cinema/{cinema_id}/movies/",
		"sessions":   "/ticket/wmyc/cinema/{cinema_id}/shows/",
		"seats":      "/ticket/wmyc/cinema/{cinema_id}/hall/saleable/",
	},
	tenant.TenantHY: {
		"cities":     "/MiniTicket/index.php/MiniCommon/getCityList",
		"cinemas":    "/MiniTicket/index.php/MiniCommon/getCinemaList",
		"cinemaInfo": "/MiniTicket/index.php/MiniCommonSystem/getCinemaSettings",
		"movies":     "/MiniTicket/index.php/MiniFilm/getFilmList",
		"sessions":   "/MiniTicket/index.php/MiniFilm/getFilmSessions",
		"seats":      "/MiniTicket/index.php/MiniFilm/getSeatStatus",
	},
}

// UnifiedCinemaAdapter issues backend calls and normalizes the five catalogue
// response families. It holds no mutable state of its own.
type UnifiedCinemaAdapter struct {
	client   *backendClient
	registry *tenant.Registry
	resolver *resolver.CinemaDomainResolver
	l        logger.Logger
}

func New(registry *tenant.Registry, res *resolver.CinemaDomainResolver, timeout time.Duration, l logger.Logger) *UnifiedCinemaAdapter {
	return &UnifiedCinemaAdapter{
		client:   newBackendClient(registry, timeout, l),
		registry: registry,
		resolver: res,
		l:        l,
	}
}

// endpoint substitutes the cinema id into a tenant's path template.
func endpoint(tenantID, op, cinemaID string) (string, error) {
	table, ok := endpoints[tenantID]
	if !ok {
		return "", tenant.ErrUnknownTenant
	}
	tpl, ok := table[op]
	if !ok {
		return "", apperrors.NewBusinessError(apperrors.CodeUnknownTenant, "",
			"operation "+op+" not supported by tenant "+tenantID)
	}
	return expandPath(tpl, cinemaID), nil
}

func expandPath(tpl, cinemaID string) string {
	out := make([]byte, 0, len(tpl)+len(cinemaID))
	for i := 0; i < len(tpl); {
		if tpl[i] == '{' && len(tpl)-i >= len("{cinema_id}") && tpl[i:i+len("{cinema_id}")] == "{cinema_id}" {
			out = append(out, cinemaID...)
			i += len("{cinema_id}")
			continue
		}
		out = append(out, tpl[i])
		i++
	}
	return string(out)
}

// domainFor resolves the serving domain for cinema-scoped calls; tenant-wide
// calls go straight to the default domain.
func (a *UnifiedCinemaAdapter) domainFor(ctx context.Context, tenantID, cinemaID string) (string, error) {
	if cinemaID == "" {
		p, err := a.registry.GetProfile(tenantID)
		if err != nil {
			return "", err
		}
		return p.DefaultDomain, nil
	}
	return a.resolver.Resolve(ctx, tenantID, cinemaID)
}

func (a *UnifiedCinemaAdapter) fetch(ctx context.Context, op, tenantID, cinemaID string, sess domain.AccountSession, query url.Values) (json.RawMessage, error) {
	path, err := endpoint(tenantID, op, cinemaID)
	if err != nil {
		return nil, err
	}
	dom, err := a.domainFor(ctx, tenantID, cinemaID)
	if err != nil {
		return nil, err
	}
	body, err := a.client.get(ctx, op, tenantID, dom, path, sess.Token, query)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(op, tenantID, body)
}

// ListCities returns the tenant-wide city catalogue, hot/normal buckets
// merged and de-duplicated by city id.
func (a *UnifiedCinemaAdapter) ListCities(ctx context.Context, sess domain.AccountSession, tenantID string) ([]domain.City, error) {
	payload, err := a.fetch(ctx, "cities", tenantID, "", sess, nil)
	if err != nil {
		return nil, err
	}

	records, err := decodeList("cities", tenantID, payload, "citys", "cities", "list")
	if err != nil {
		return nil, err
	}
	records = dedupBy(records, cityIDAliases)

	cities := make([]domain.City, 0, len(records))
	for _, rec := range records {
		cities = append(cities, domain.City{
			ID:          rec.str(cityIDAliases...),
			Name:        rec.str(cityNameAliases...),
			Pinyin:      rec.str(cityPinyinAliases...),
			CinemaTotal: rec.intVal("cinema_total", "cinemaTotal"),
			TenantID:    tenantID,
		})
	}
	return cities, nil
}

// ListCinemas returns the cinemas of one city.
func (a *UnifiedCinemaAdapter) ListCinemas(ctx context.Context, sess domain.AccountSession, tenantID, cityID string) ([]domain.CinemaRecord, error) {
	query := url.Values{}
	if cityID != "" {
		query.Set("city_id", cityID)
	}

	payload, err := a.fetch(ctx, "cinemas", tenantID, "", sess, query)
	if err != nil {
		return nil, err
	}

	records, err := decodeList("cinemas", tenantID, payload, "cinemas", "list")
	if err != nil {
		return nil, err
	}
	records = dedupBy(records, cinemaIDAliases)

	cinemas := make([]domain.CinemaRecord, 0, len(records))
	for _, rec := range records {
		cinemas = append(cinemas, domain.CinemaRecord{
			CinemaID:       rec.str(cinemaIDAliases...),
			TenantID:       tenantID,
			ResolvedDomain: rec.str(cinemaDomainAliases...),
			Name:           rec.str(cinemaNameAliases...),
			Address:        rec.str(cinemaAddressAliases...),
			Phone:          rec.str(cinemaPhoneAliases...),
			CityID:         cityID,
		})
	}
	return cinemas, nil
}

// ListMovies returns the movies currently scheduled at a cinema.
func (a *UnifiedCinemaAdapter) ListMovies(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID string) ([]domain.Movie, error) {
	payload, err := a.fetch(ctx, "movies", tenantID, cinemaID, sess, nil)
	if err != nil {
		return nil, err
	}

	records, err := decodeList("movies", tenantID, payload, "movies", "films", "list")
	if err != nil {
		return nil, err
	}
	records = dedupBy(records, movieIDAliases)

	movies := make([]domain.Movie, 0, len(records))
	for _, rec := range records {
		movies = append(movies, domain.Movie{
			ID:       rec.str(movieIDAliases...),
			Name:     rec.str(movieNameAliases...),
			Duration: rec.intVal(movieDurationAliases...),
			Genre:    rec.str(movieGenreAliases...),
			Poster:   rec.str(moviePosterAliases...),
			CinemaID: cinemaID,
			TenantID: tenantID,
		})
	}
	return movies, nil
}

// ListSessions returns the showtimes for a movie at a cinema. The WM backend
// keys sessions by date; with an empty date every day's sessions are
// flattened in date order.
func (a *UnifiedCinemaAdapter) ListSessions(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, movieID, date string) ([]domain.Session, error) {
	query := url.Values{}
	query.Set("movie_id", movieID)
	if date != "" {
		query.Set("date", date)
	}

	payload, err := a.fetch(ctx, "sessions", tenantID, cinemaID, sess, query)
	if err != nil {
		return nil, err
	}

	records, err := a.decodeSessionList(tenantID, payload, date)
	if err != nil {
		return nil, err
	}
	records = dedupBy(records, sessionIDAliases)

	sessions := make([]domain.Session, 0, len(records))
	for _, rec := range records {
		sessions = append(sessions, domain.Session{
			ID:         rec.str(sessionIDAliases...),
			CinemaID:   cinemaID,
			MovieID:    movieID,
			HallName:   rec.str(sessionHallAliases...),
			PriceCents: rec.priceCents(tenantID, sessionPriceAliases...),
			StartTime:  rec.str(sessionTimeAliases...),
			Date:       rec.str(sessionDateAliases...),
			TenantID:   tenantID,
		})
	}
	return sessions, nil
}

// decodeSessionList handles the WM date-keyed shape and the HY flat shape.
func (a *UnifiedCinemaAdapter) decodeSessionList(tenantID string, payload json.RawMessage, date string) ([]record, error) {
	const op = "sessions"

	var asList []record
	if err := json.Unmarshal(payload, &asList); err == nil {
		return asList, nil
	}

	var byDate map[string]json.RawMessage
	if err := json.Unmarshal(payload, &byDate); err != nil {
		return nil, apperrors.NewNormalizationError(op, tenantID, len(payload), "payload is neither list nor object")
	}

	// Object with a plain list under a known key.
	if raw, ok := byDate["sessions"]; ok {
		var list []record
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, apperrors.NewNormalizationError(op, tenantID, len(payload), "malformed sessions list")
		}
		return list, nil
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		if date == "" || d == date {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)

	var out []record
	for _, d := range dates {
		list, err := a.decodeDateEntry(tenantID, byDate[d])
		if err != nil {
			return nil, err
		}
		for _, rec := range list {
			if rec.str(sessionDateAliases...) == "" {
				rec["show_date"] = d
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func (a *UnifiedCinemaAdapter) decodeDateEntry(tenantID string, raw json.RawMessage) ([]record, error) {
	var list []record
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var obj struct {
		Shows []record `json:"shows"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, apperrors.NewNormalizationError("sessions", tenantID, len(raw), "malformed date entry")
	}
	return obj.Shows, nil
}

// ListSessionsRange fans out one ListSessions call per date and returns the
// combined result in input date order. A single failing date fails the whole
// range.
func (a *UnifiedCinemaAdapter) ListSessionsRange(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, movieID string, dates []string) ([]domain.Session, error) {
	results := make([][]domain.Session, len(dates))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range dates {
		g.Go(func() error {
			sessions, err := a.ListSessions(gctx, sess, tenantID, cinemaID, movieID, d)
			if err != nil {
				return err
			}
			results[i] = sessions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.Session
	for _, sessions := range results {
		out = append(out, sessions...)
	}
	return out, nil
}

// GetSeatMap returns the hall layout for a session.
func (a *UnifiedCinemaAdapter) GetSeatMap(ctx context.Context, sess domain.AccountSession, tenantID, cinemaID, sessionID string) (*domain.SeatMap, error) {
	query := url.Values{}
	query.Set("schedule_id", sessionID)

	payload, err := a.fetch(ctx, "seats", tenantID, cinemaID, sess, query)
	if err != nil {
		return nil, err
	}

	var root record
	if err := json.Unmarshal(payload, &root); err != nil {
		return nil, apperrors.NewNormalizationError("seats", tenantID, len(payload), "seat payload is not an object")
	}

	grid, err := parseSeatGrid(tenantID, root)
	if err != nil {
		return nil, err
	}

	return &domain.SeatMap{
		SessionID: sessionID,
		HallName:  root.str(hallNameAliases...),
		Grid:      grid,
		TenantID:  tenantID,
	}, nil
}

// Probe satisfies resolver.Prober: it calls the cinema-info endpoint on the
// tenant's default domain. A payload announcing its own base_url wins over
// the default.
func (a *UnifiedCinemaAdapter) Probe(ctx context.Context, tenantID, cinemaID string) (string, error) {
	p, err := a.registry.GetProfile(tenantID)
	if err != nil {
		return "", err
	}

	path, err := endpoint(tenantID, "cinemaInfo", cinemaID)
	if err != nil {
		return "", err
	}

	query := url.Values{}
	if tenantID == tenant.TenantHY {
		query.Set("cinemaid", cinemaID)
	}

	body, err := a.client.get(ctx, "cinemaInfo", tenantID, p.DefaultDomain, path, "", query)
	if err != nil {
		return "", err
	}
	payload, err := decodeEnvelope("cinemaInfo", tenantID, body)
	if err != nil {
		return "", err
	}

	var info record
	if err := json.Unmarshal(payload, &info); err == nil {
		if announced := info.str(cinemaDomainAliases...); announced != "" {
			return announced, nil
		}
	}
	return p.DefaultDomain, nil
}

// NewProber builds a standalone prober sharing the adapter's transport
// settings, for wiring the resolver before the adapter exists.
func NewProber(registry *tenant.Registry, timeout time.Duration, l logger.Logger) resolver.Prober {
	probeOnly := &UnifiedCinemaAdapter{
		client:   newBackendClient(registry, timeout, l),
		registry: registry,
		l:        l,
	}
	return resolver.ProbeFunc(probeOnly.Probe)
}
