package services

import (
	"context"
	"fmt"

	"portfolio-hub/internal/models"

	"github.com/sirupsen/logrus"
)

// SweepReport summarizes one expiry sweep
type SweepReport struct {
	Checked int `json:"checked"`
	Expired int `json:"expired"`
	Alerted int `json:"alerted"`
}

// CheckDomainExpiry walks every registered domain. Active domains past their
// expiry date are marked expired and their owner is told; domains hitting an
// alert threshold get a reminder.
func (s *DataService) CheckDomainExpiry(ctx context.Context) SweepReport {
	var report SweepReport
	now := s.now().UTC()
	domains := s.FetchDomains(ctx, "")
	s.log.Infof("Checking %d domains...", len(domains))

	for _, d := range domains {
		if d.ExpiryDate.IsZero() || d.Status == models.DomainExpired {
			continue
		}
		report.Checked++
		days := d.DaysRemaining(now)

		if !d.ExpiryDate.After(now) {
			if d.Status != models.DomainActive {
				continue
			}
			if _, err := s.UpdateDomainStatus(ctx, d.ID, models.DomainExpired); err != nil {
				s.logFor(models.KindDomains, "expire").WithError(err).WithField("domain", d.FQDN()).Error("failed to expire domain")
				continue
			}
			report.Expired++
			s.notifyOwner(ctx, d, "Domain expired",
				fmt.Sprintf("%s expired on %s.", d.FQDN(), d.ExpiryDate.Format("2006-01-02")))
			continue
		}

		for _, threshold := range s.alertDays {
			if days == threshold {
				report.Alerted++
				s.notifyOwner(ctx, d, "Domain expiring soon",
					fmt.Sprintf("%s expires in %d days.", d.FQDN(), days))
				break
			}
		}
	}

	s.log.WithFields(logrus.Fields{
		"checked": report.Checked, "expired": report.Expired, "alerted": report.Alerted,
	}).Info("domain expiry sweep finished")
	return report
}

func (s *DataService) notifyOwner(ctx context.Context, d models.Domain, title, message string) {
	if d.Owner == "" {
		return
	}
	s.NewNotification(ctx, models.Notification{
		Recipient: d.Owner,
		Title:     title,
		Message:   message,
		Type:      "domain",
		Link:      "/portal/domains",
	})
}
