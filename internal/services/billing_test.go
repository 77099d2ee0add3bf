package services

import (
	"context"
	"testing"

	"portfolio-hub/internal/models"
	"portfolio-hub/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSignable(f *fixture) {
	f.gw.Seed("generated_projects", remote.Row{
		"id": "gp1", "user_email": "client@example.com", "project_name": "Clinic site",
		"stage": "analysis", "status": "pending", "created_at": "2026-02-10T09:00:00Z",
	})
	f.gw.Seed("contracts", remote.Row{
		"id": "c1", "project_id": "gp1", "user_email": "client@example.com",
		"title": "Clinic build", "amount": 5000, "status": "pending", "created_at": "2026-02-11T09:00:00Z",
	})
}

func adminNotifications(f *fixture) []remote.Row {
	return rowsWhere(f.gw.Rows("notifications"), "user_email", "admin@example.com")
}

func TestSignContract_Cascade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedSignable(f)
	f.svc.FetchContracts(ctx, "")

	res, err := f.svc.SignContract(WithActor(ctx, "client@example.com"), "c1")
	require.NoError(t, err)
	assert.Equal(t, Synced, res.State)
	assert.Equal(t, models.ContractSigned, res.Value.Status)
	require.NotNil(t, res.Value.SignedAt)
	assert.True(t, res.Value.SignedAt.Equal(fixedNow))

	project := f.gw.Rows("generated_projects")[0]
	assert.Equal(t, "dev", project["stage"])
	assert.Equal(t, "in_progress", project["status"])

	notes := adminNotifications(f)
	require.Len(t, notes, 1)
	assert.Equal(t, "Contract signed", notes[0]["title"])

	intents := f.svc.Intents(ctx)
	require.Len(t, intents, 1)
	assert.Equal(t, models.IntentComplete, intents[0].Status)
	assert.Equal(t, "client@example.com", intents[0].Actor)

	var messages []string
	for _, a := range f.svc.GetActivities(ctx) {
		messages = append(messages, a.Message)
	}
	assert.Contains(t, messages, "Contract signed: Clinic build")
}

func TestSignContract_ResumesAfterProjectFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedSignable(f)
	f.svc.FetchContracts(ctx, "")
	f.gw.SetTableFailure("generated_projects", errOffline)

	res, err := f.svc.SignContract(ctx, "c1")
	require.NoError(t, err, "a failed follow-up step does not fail the signature")
	assert.Equal(t, models.ContractSigned, res.Value.Status)
	assert.Equal(t, "analysis", f.gw.Rows("generated_projects")[0]["stage"])

	in := f.svc.Intents(ctx)[0]
	assert.Equal(t, models.IntentPending, in.Status)
	require.NotNil(t, in.Step(stepAdvanceProject))
	assert.False(t, in.Step(stepAdvanceProject).Done)
	assert.NotEmpty(t, in.Step(stepAdvanceProject).Error)
	assert.True(t, in.Step(stepNotifyAdmin).Done)
	assert.True(t, in.Step(stepLogActivity).Done)

	f.gw.SetTableFailure("generated_projects", nil)
	_, err = f.svc.Reconcile(ctx)
	require.NoError(t, err)

	assert.Equal(t, "dev", f.gw.Rows("generated_projects")[0]["stage"])
	assert.Equal(t, models.IntentComplete, f.svc.Intents(ctx)[0].Status)
	assert.Len(t, adminNotifications(f), 1, "finished steps are not repeated")
}

func TestSignContract_MissingContract(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.SignContract(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.svc.Intents(ctx))
}

func TestSignContract_OfflineProjectAdvancedLocally(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.SetFailure(errOffline)
	project := f.svc.AddGeneratedProject(ctx, models.GeneratedProject{Name: "Offline", UserEmail: "c@example.com"})
	contract := f.svc.AddContract(ctx, models.Contract{Title: "Offline deal", ProjectID: project.Value.ID, UserEmail: "c@example.com"})
	f.gw.SetFailure(nil)

	res, err := f.svc.SignContract(ctx, contract.Value.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractSigned, res.Value.Status)

	local, ok := f.svc.GetGeneratedProject(ctx, project.Value.ID)
	require.True(t, ok)
	assert.Equal(t, models.StageDev, local.Stage)
	assert.Equal(t, models.StatusInProgress, local.Status)
	assert.Equal(t, models.IntentComplete, f.svc.Intents(ctx)[0].Status)
}

func TestAddInvoice_DefaultsAndClientNotice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res := f.svc.AddInvoice(ctx, models.Invoice{Title: "Deposit", Amount: 1500, UserEmail: "Client@Example.com", DueDate: "2026-03-15"})
	require.Equal(t, Synced, res.State)
	assert.Equal(t, "SAR", res.Value.Currency)
	assert.Equal(t, models.InvoiceUnpaid, res.Value.Status)

	notes := rowsWhere(f.gw.Rows("notifications"), "user_email", "client@example.com")
	require.Len(t, notes, 1)
	assert.Equal(t, "invoice", notes[0]["type"])
	assert.Len(t, f.svc.GetInvoices(ctx, "CLIENT@example.com"), 1)
}

func TestPayInvoice_NotifiesAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.svc.AddInvoice(ctx, models.Invoice{Title: "Final", Amount: 900, UserEmail: "c@example.com"})

	res, err := f.svc.PayInvoice(ctx, inv.Value.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, res.Value.Status)
	assert.Len(t, adminNotifications(f), 1)

	_, err = f.svc.PayInvoice(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchAllTransactions_Summary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.Seed("domain_transactions",
		remote.Row{"id": "t1", "user_email": "a@example.com", "amount": 100, "payment_status": "completed"},
		remote.Row{"id": "t2", "user_email": "b@example.com", "amount": 50.5, "payment_status": "completed"},
		remote.Row{"id": "t3", "user_email": "b@example.com", "amount": 20, "payment_status": "pending"},
		remote.Row{"id": "t4", "user_email": "c@example.com", "amount": 10, "payment_status": "failed"},
	)

	list, sum := f.svc.FetchAllTransactions(ctx)
	assert.Len(t, list, 4)
	assert.Equal(t, models.FinanceSummary{Total: 150.5, Count: 4, Pending: 1}, sum)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, models.FinanceSummary{}, Summarize(nil))
}
