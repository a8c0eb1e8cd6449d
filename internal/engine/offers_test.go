package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/engine"
	"github.com/xumezzan/marketplace-project/internal/engine/auth"
	"github.com/xumezzan/marketplace-project/internal/events"
	"github.com/xumezzan/marketplace-project/internal/repo"
)

func (env testEnv) offer(t *testing.T, taskID, specialistID, price string) domain.Offer {
	t.Helper()
	o, err := env.Engine.SubmitOffer(env.Ctx, engine.OfferOptions{
		TaskID:       taskID,
		SpecialistID: specialistID,
		Price:        price,
		Message:      "Сделаю сегодня",
		ActorID:      specialistID,
	})
	require.NoError(t, err)
	return o
}

func TestAcceptOfferOpensDeal(t *testing.T) {
	env := newTestEnv(t)
	first := env.specialist(t)
	second := env.specialist(t)
	task := env.task(t, "client-1")

	cheap := env.offer(t, task.ID, first.ID, "1200")
	dear := env.offer(t, task.ID, second.ID, "2500.5")
	assert.Equal(t, domain.OfferPending, cheap.Status)
	assert.Equal(t, "2500.50", dear.Price)

	listed, err := env.Engine.ListOffers(env.Ctx, repo.OfferFilters{TaskID: task.ID})
	require.NoError(t, err)
	require.Len(t, listed, 2)

	_, _, err = env.Engine.AcceptOffer(env.Ctx, cheap.ID, "client-2")
	var fe auth.ForbiddenError
	require.ErrorAs(t, err, &fe)

	accepted, deal, err := env.Engine.AcceptOffer(env.Ctx, cheap.ID, "client-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OfferAccepted, accepted.Status)
	require.NotNil(t, accepted.DealID)
	assert.Equal(t, deal.ID, *accepted.DealID)
	assert.Equal(t, "idle", deal.Status)
	assert.Equal(t, "1200.00", deal.Amount)
	assert.Equal(t, first.ID, deal.SpecialistID)

	got, err := env.Engine.GetOffer(env.Ctx, dear.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferRejected, got.Status, "other pending offers are rejected")
	tk, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskInProgress, tk.Status)

	stored, err := env.Engine.GetDeal(env.Ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, "1200.00", stored.Amount)

	_, _, err = env.Engine.AcceptOffer(env.Ctx, cheap.ID, "client-1")
	require.ErrorIs(t, err, repo.ErrConflict)
	_, err = env.Engine.RejectOffer(env.Ctx, dear.ID, "client-1")
	require.ErrorIs(t, err, repo.ErrConflict)

	deal, err = env.Engine.Hire(env.Ctx, deal.ID, "client-1")
	require.NoError(t, err)
	env.wait(t, deal.ID)
	deal, err = env.Engine.ConfirmCompletion(env.Ctx, deal.ID, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", deal.Status)
	assert.Equal(t, "1080.00", *deal.Payout)

	evts, err := env.Engine.Repo.ListEvents(env.Ctx, repo.EventFilters{EntityKind: events.EntityOffer})
	require.NoError(t, err)
	var types []string
	for _, e := range evts {
		types = append(types, e.Type)
	}
	assert.ElementsMatch(t, []string{events.OfferSubmitted, events.OfferSubmitted, events.OfferAccepted, events.OfferRejected}, types)
}

func TestSubmitOfferRules(t *testing.T) {
	env := newTestEnv(t)
	spec := env.specialist(t)
	task := env.task(t, "client-1")

	_, err := env.Engine.SubmitOffer(env.Ctx, engine.OfferOptions{TaskID: task.ID, SpecialistID: spec.ID, Price: "0", Message: "x", ActorID: spec.ID})
	var ve engine.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "price", ve.Field)

	_, err = env.Engine.SubmitOffer(env.Ctx, engine.OfferOptions{TaskID: task.ID, SpecialistID: spec.ID, Price: "100", Message: " ", ActorID: spec.ID})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "message", ve.Field)

	_, err = env.Engine.SubmitOffer(env.Ctx, engine.OfferOptions{TaskID: task.ID, SpecialistID: spec.ID, Price: "100", Message: "x", ActorID: "client-1"})
	var fe auth.ForbiddenError
	require.ErrorAs(t, err, &fe)

	_, err = env.Engine.SubmitOffer(env.Ctx, engine.OfferOptions{TaskID: "missing", SpecialistID: spec.ID, Price: "100", Message: "x", ActorID: spec.ID})
	require.ErrorIs(t, err, repo.ErrNotFound)

	env.offer(t, task.ID, spec.ID, "100")
	_, err = env.Engine.SubmitOffer(env.Ctx, engine.OfferOptions{TaskID: task.ID, SpecialistID: spec.ID, Price: "90", Message: "дешевле", ActorID: spec.ID})
	require.ErrorIs(t, err, repo.ErrConflict, "one offer per specialist and task")

	_, err = env.Engine.ListOffers(env.Ctx, repo.OfferFilters{TaskID: "missing"})
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestRejectOffer(t *testing.T) {
	env := newTestEnv(t)
	spec := env.specialist(t)
	task := env.task(t, "client-1")
	o := env.offer(t, task.ID, spec.ID, "700")

	_, err := env.Engine.RejectOffer(env.Ctx, o.ID, "client-2")
	var fe auth.ForbiddenError
	require.ErrorAs(t, err, &fe)

	rejected, err := env.Engine.RejectOffer(env.Ctx, o.ID, "client-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OfferRejected, rejected.Status)

	_, _, err = env.Engine.AcceptOffer(env.Ctx, o.ID, "client-1")
	require.ErrorIs(t, err, repo.ErrConflict)
	tk, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskOpen, tk.Status)

	pending, err := env.Engine.ListOffers(env.Ctx, repo.OfferFilters{TaskID: task.ID, Status: string(domain.OfferPending)})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAcceptOfferBlockedByOpenDeal(t *testing.T) {
	env := newTestEnv(t)
	spec := env.specialist(t)
	task := env.task(t, "client-1")
	o := env.offer(t, task.ID, spec.ID, "700")

	direct, _, err := env.Engine.OpenDeal(env.Ctx, engine.DealOpenOptions{ClientID: "client-1", SpecialistID: spec.ID, TaskID: task.ID})
	require.NoError(t, err)

	_, _, err = env.Engine.AcceptOffer(env.Ctx, o.ID, "client-1")
	require.ErrorIs(t, err, repo.ErrConflict)
	got, err := env.Engine.GetOffer(env.Ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferPending, got.Status)

	require.NoError(t, env.Engine.DiscardDeal(env.Ctx, direct.ID, "client-1"))
	_, deal, err := env.Engine.AcceptOffer(env.Ctx, o.ID, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "700.00", deal.Amount)
}
