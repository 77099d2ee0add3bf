package services

import (
	"context"
	"encoding/json"
	"strings"

	"portfolio-hub/internal/cache"
	"portfolio-hub/internal/models"
	"portfolio-hub/internal/normalize"
	"portfolio-hub/internal/remote"

	"github.com/tidwall/gjson"
)

// CheckDomainFunction is the server-side function answering availability
const CheckDomainFunction = "check-domain"

func (s *DataService) GetDomains(ctx context.Context, owner string) []models.Domain {
	owner = strings.ToLower(owner)
	return filter(s.domains.get(ctx), func(d models.Domain) bool { return owner == "" || d.Owner == owner })
}

func (s *DataService) FetchDomains(ctx context.Context, owner string) []models.Domain {
	owner = strings.ToLower(owner)
	return s.domains.fetch(ctx, ownedBy(owner), func(d models.Domain) bool {
		return owner == "" || d.Owner == owner
	})
}

func (s *DataService) AddDomain(ctx context.Context, d models.Domain) Result[models.Domain] {
	d.Owner = strings.ToLower(strings.TrimSpace(d.Owner))
	return s.domains.add(ctx, normalize.Domain(normalize.ToMap(d)))
}

func (s *DataService) UpdateDomainStatus(ctx context.Context, id string, status models.DomainStatus) (Result[models.Domain], error) {
	return s.domains.update(ctx, id, map[string]any{"status": status})
}

func (s *DataService) ToggleAutoRenew(ctx context.Context, id string, enabled bool) (Result[models.Domain], error) {
	return s.domains.update(ctx, id, map[string]any{"autoRenew": enabled})
}

// LinkWebsite attaches a project to a domain; an empty websiteID unlinks it
func (s *DataService) LinkWebsite(ctx context.Context, id, websiteID string) (Result[models.Domain], error) {
	return s.domains.update(ctx, id, map[string]any{"websiteId": websiteID})
}

func (s *DataService) DeleteDomain(ctx context.Context, id string) (Result[models.Domain], error) {
	return s.domains.remove(ctx, id)
}

// Pricing

func defaultPricing() []models.DomainPrice {
	return []models.DomainPrice{
		{Extension: ".com", Price: 45, Currency: normalize.DefaultCurrency},
		{Extension: ".net", Price: 55, Currency: normalize.DefaultCurrency},
		{Extension: ".sa", Price: 120, Currency: normalize.DefaultCurrency},
	}
}

var pricingKey = cache.KindKey(models.KindDomainPricing)

// GetDomainPricing returns cached prices, or the built-in price list
func (s *DataService) GetDomainPricing(ctx context.Context) []models.DomainPrice {
	var raw []map[string]any
	if !s.cache.Get(ctx, pricingKey, &raw) || len(raw) == 0 {
		return defaultPricing()
	}
	out := make([]models.DomainPrice, 0, len(raw))
	for _, r := range raw {
		out = append(out, normalize.DomainPrice(r))
	}
	return out
}

// FetchDomainPricing refreshes the price list; an empty remote table keeps
// the current prices
func (s *DataService) FetchDomainPricing(ctx context.Context) []models.DomainPrice {
	rows, err := s.gw.Select(ctx, string(models.KindDomainPricing), remote.Query{
		Order: []remote.Order{{Column: "extension"}},
	})
	if err != nil {
		s.logFor(models.KindDomainPricing, "fetch").WithError(err).Warn("remote fetch failed, serving cache")
		s.metrics.fetch(string(models.KindDomainPricing), false)
		return s.GetDomainPricing(ctx)
	}
	s.metrics.fetch(string(models.KindDomainPricing), true)
	if len(rows) == 0 {
		return s.GetDomainPricing(ctx)
	}
	prices := make([]models.DomainPrice, 0, len(rows))
	for _, row := range rows {
		prices = append(prices, normalize.DomainPrice(row))
	}
	if err := s.cache.Set(ctx, pricingKey, prices); err != nil {
		s.logFor(models.KindDomainPricing, "fetch").WithError(err).Error("cache write failed")
	}
	return prices
}

// Availability

// CheckDomain asks the check-domain function whether name can be
// registered, falling back to a local estimate when it cannot answer
func (s *DataService) CheckDomain(ctx context.Context, name string) models.DomainAvailability {
	name = strings.ToLower(strings.TrimSpace(name))
	if inv, ok := s.gw.(remote.Invoker); ok {
		row, err := inv.Invoke(ctx, CheckDomainFunction, map[string]any{"domain": name})
		if err == nil {
			if res, ok := parseAvailability(name, row); ok {
				return res
			}
			err = remote.StatusError("invoke", CheckDomainFunction, 0, "", "unreadable availability response")
		}
		s.log.WithError(err).WithField("domain", name).Warn("domain check failed, estimating")
	}
	return s.estimateAvailability(name)
}

// parseAvailability reads the function response, which may be wrapped in a
// data envelope
func parseAvailability(name string, row remote.Row) (models.DomainAvailability, bool) {
	data, err := json.Marshal(row)
	if err != nil {
		return models.DomainAvailability{}, false
	}
	res := gjson.ParseBytes(data)
	if env := res.Get("data"); env.IsObject() {
		res = env
	}
	available := res.Get("available")
	if !available.Exists() {
		return models.DomainAvailability{}, false
	}

	out := models.DomainAvailability{
		Domain:    name,
		Available: available.Bool(),
		Price:     res.Get("price").Float(),
		Currency:  res.Get("currency").String(),
		Premium:   res.Get("premium").Bool(),
		Period:    int(res.Get("period").Int()),
	}
	if d := res.Get("domain").String(); d != "" {
		out.Domain = d
	}
	if out.Currency == "" {
		out.Currency = normalize.DefaultCurrency
	}
	if out.Period <= 0 {
		out.Period = 1
	}
	if checked := res.Get("checked_at"); checked.Exists() {
		out.CheckedAt = checked.Time()
	}
	return out, true
}

const (
	estimateBasePrice     = 45
	estimatePremiumFactor = 5
	estimateShortName     = 5
)

// estimateAvailability treats names starting with "taken" or mentioning
// google as registered and prices short names as premium
func (s *DataService) estimateAvailability(name string) models.DomainAvailability {
	taken := strings.HasPrefix(name, "taken") || strings.Contains(name, "google")
	factor := 1
	if len(name) < estimateShortName {
		factor = estimatePremiumFactor
	}
	return models.DomainAvailability{
		Domain:    name,
		Available: !taken,
		Price:     float64(estimateBasePrice * factor),
		Currency:  normalize.DefaultCurrency,
		Premium:   factor > 1,
		Period:    1,
		CheckedAt: s.now().UTC(),
		Estimated: true,
	}
}
