package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"portfolio-hub/internal/models"
	"portfolio-hub/internal/normalize"
	"portfolio-hub/internal/remote"
)

const intentContractSign = "contract_sign"

// contract signing steps, in order
const (
	stepSignContract   = "sign_contract"
	stepAdvanceProject = "advance_project"
	stepNotifyAdmin    = "notify_admin"
	stepLogActivity    = "log_activity"
)

func ownedBy(email string) remote.Query {
	q := newestQuery
	if email != "" {
		q.Filters = []remote.Filter{remote.Eq("user_email", strings.ToLower(email))}
	}
	return q
}

// Contracts

func (s *DataService) GetContracts(ctx context.Context, email string) []models.Contract {
	email = strings.ToLower(email)
	return filter(s.contracts.get(ctx), func(c models.Contract) bool { return email == "" || c.UserEmail == email })
}

func (s *DataService) FetchContracts(ctx context.Context, email string) []models.Contract {
	email = strings.ToLower(email)
	return s.contracts.fetch(ctx, ownedBy(email), func(c models.Contract) bool {
		return email == "" || c.UserEmail == email
	})
}

// AddContract issues a contract and notifies the client
func (s *DataService) AddContract(ctx context.Context, c models.Contract) Result[models.Contract] {
	c.UserEmail = strings.ToLower(strings.TrimSpace(c.UserEmail))
	if c.Status == "" {
		c.Status = models.ContractPending
	}
	res := s.contracts.add(ctx, c)
	if res.Value.UserEmail != "" {
		s.NewNotification(ctx, models.Notification{
			Recipient: res.Value.UserEmail,
			Title:     "New contract",
			Message:   fmt.Sprintf("Contract %q is ready for your signature.", res.Value.Title),
			Type:      "contract",
			Link:      "/portal/contracts",
		})
	}
	return res
}

func (s *DataService) UpdateContract(ctx context.Context, id string, patch map[string]any) (Result[models.Contract], error) {
	return s.contracts.update(ctx, id, patch)
}

func (s *DataService) DeleteContract(ctx context.Context, id string) (Result[models.Contract], error) {
	return s.contracts.remove(ctx, id)
}

// SignContract marks a contract signed and runs the follow-up steps. The
// steps are recorded as an intent; steps that fail stay pending for the
// reconciler and never fail the signature itself.
func (s *DataService) SignContract(ctx context.Context, id string) (Result[models.Contract], error) {
	in := s.beginIntent(ctx, intentContractSign, id,
		stepSignContract, stepAdvanceProject, stepNotifyAdmin, stepLogActivity)
	res, err := s.runContractSign(ctx, &in)
	if errors.Is(err, ErrNotFound) {
		s.dropIntent(ctx, in.ID)
	}
	return res, err
}

// runContractSign executes the pending steps of in and saves its progress
// after each one. Only a failed signature step stops the run.
func (s *DataService) runContractSign(ctx context.Context, in *models.Intent) (Result[models.Contract], error) {
	log := s.log.WithField("intent", in.ID).WithField("contract", in.SubjectID)
	var res Result[models.Contract]
	if c, ok := s.contracts.lookup(ctx, in.SubjectID); ok {
		res = synced(c)
	}

	for i := range in.Steps {
		step := &in.Steps[i]
		if step.Done {
			continue
		}
		var err error
		switch step.Name {
		case stepSignContract:
			res, err = s.contracts.update(ctx, in.SubjectID, map[string]any{
				"status":   models.ContractSigned,
				"signedAt": s.now().UTC(),
			})
		case stepAdvanceProject:
			err = s.advanceSignedProject(ctx, res.Value)
		case stepNotifyAdmin:
			if admin := s.AdminEmail(ctx); admin != "" {
				s.NewNotification(ctx, models.Notification{
					Recipient: admin,
					Title:     "Contract signed",
					Message:   fmt.Sprintf("%s signed %q.", res.Value.UserEmail, res.Value.Title),
					Type:      "contract",
					Link:      "/admin/contracts",
				})
			}
		case stepLogActivity:
			s.logActivity(ctx, models.ActivityUpdate, fmt.Sprintf("Contract signed: %s", res.Value.Title))
		}

		if err != nil {
			step.Error = err.Error()
			if step.Name == stepSignContract {
				log.WithError(err).Warn("contract not signed")
				return res, err
			}
			log.WithError(err).WithField("step", step.Name).Error("contract cascade step failed")
			s.saveIntent(ctx, *in)
			continue
		}
		step.Done = true
		step.Error = ""
		s.saveIntent(ctx, *in)
	}
	return res, nil
}

// advanceSignedProject forces the linked project into development. The
// project is read from the remote store so a stale cache cannot skip it.
func (s *DataService) advanceSignedProject(ctx context.Context, c models.Contract) error {
	if c.ProjectID == "" {
		return nil
	}
	advance := map[string]any{
		"stage":  models.StageDev,
		"status": models.StatusInProgress,
	}
	rows, err := s.gw.Select(ctx, string(models.KindGeneratedProjects), remote.Query{
		Filters: []remote.Filter{remote.Eq("id", c.ProjectID)},
		Limit:   1,
	})
	if err != nil {
		return fmt.Errorf("read project %s: %w", c.ProjectID, err)
	}
	if len(rows) == 0 {
		// created offline and not replayed yet
		if s.requests.queuedCreate(ctx, c.ProjectID) != "" {
			_, err := s.requests.update(ctx, c.ProjectID, advance)
			return err
		}
		s.logFor(models.KindGeneratedProjects, "advance").WithField("id", c.ProjectID).
			Warn("signed contract links a missing project")
		return nil
	}
	current := normalize.GeneratedProject(rows[0])
	if current.Stage == models.StageDev && current.Status == models.StatusInProgress {
		return nil
	}
	res, err := s.requests.update(ctx, current.ID, advance)
	if err != nil {
		return err
	}
	if res.Pending() {
		return res.Err
	}
	return nil
}

// Invoices

func (s *DataService) GetInvoices(ctx context.Context, email string) []models.Invoice {
	email = strings.ToLower(email)
	return filter(s.invoices.get(ctx), func(i models.Invoice) bool { return email == "" || i.UserEmail == email })
}

func (s *DataService) FetchInvoices(ctx context.Context, email string) []models.Invoice {
	email = strings.ToLower(email)
	return s.invoices.fetch(ctx, ownedBy(email), func(i models.Invoice) bool {
		return email == "" || i.UserEmail == email
	})
}

// AddInvoice issues an invoice and notifies the client
func (s *DataService) AddInvoice(ctx context.Context, inv models.Invoice) Result[models.Invoice] {
	inv.UserEmail = strings.ToLower(strings.TrimSpace(inv.UserEmail))
	if inv.Currency == "" {
		inv.Currency = normalize.DefaultCurrency
	}
	if inv.Status == "" {
		inv.Status = models.InvoiceUnpaid
	}
	res := s.invoices.add(ctx, inv)
	if res.Value.UserEmail != "" {
		s.NewNotification(ctx, models.Notification{
			Recipient: res.Value.UserEmail,
			Title:     "New invoice",
			Message:   fmt.Sprintf("Invoice %q for %.2f %s is due %s.", res.Value.Title, res.Value.Amount, res.Value.Currency, res.Value.DueDate),
			Type:      "invoice",
			Link:      "/portal/invoices",
		})
	}
	return res
}

func (s *DataService) UpdateInvoice(ctx context.Context, id string, patch map[string]any) (Result[models.Invoice], error) {
	return s.invoices.update(ctx, id, patch)
}

func (s *DataService) DeleteInvoice(ctx context.Context, id string) (Result[models.Invoice], error) {
	return s.invoices.remove(ctx, id)
}

// PayInvoice marks an invoice paid and tells the admin
func (s *DataService) PayInvoice(ctx context.Context, id string) (Result[models.Invoice], error) {
	res, err := s.invoices.update(ctx, id, map[string]any{"status": models.InvoicePaid})
	if err != nil {
		return res, err
	}
	if admin := s.AdminEmail(ctx); admin != "" {
		s.NewNotification(ctx, models.Notification{
			Recipient: admin,
			Title:     "Invoice paid",
			Message:   fmt.Sprintf("%s paid %q (%.2f %s).", res.Value.UserEmail, res.Value.Title, res.Value.Amount, res.Value.Currency),
			Type:      "invoice",
			Link:      "/admin/invoices",
		})
	}
	return res, nil
}

// Transactions

func (s *DataService) GetTransactions(ctx context.Context) []models.DomainTransaction {
	return s.transactions.get(ctx)
}

// FetchAllTransactions refreshes every transaction and summarizes them
func (s *DataService) FetchAllTransactions(ctx context.Context) ([]models.DomainTransaction, models.FinanceSummary) {
	list := s.transactions.fetch(ctx, newestQuery, nil)
	return list, Summarize(list)
}

func (s *DataService) AddTransaction(ctx context.Context, t models.DomainTransaction) Result[models.DomainTransaction] {
	t.Owner = strings.ToLower(strings.TrimSpace(t.Owner))
	return s.transactions.add(ctx, t)
}

func (s *DataService) UpdateTransaction(ctx context.Context, id string, patch map[string]any) (Result[models.DomainTransaction], error) {
	return s.transactions.update(ctx, id, patch)
}

// Summarize totals completed revenue and counts pending payments
func Summarize(list []models.DomainTransaction) models.FinanceSummary {
	sum := models.FinanceSummary{Count: len(list)}
	for _, t := range list {
		switch t.PaymentStatus {
		case models.PaymentCompleted:
			sum.Total += t.Amount
		case models.PaymentPending:
			sum.Pending++
		}
	}
	return sum
}
