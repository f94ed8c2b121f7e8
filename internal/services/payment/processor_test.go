package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orienta-app/orienta/internal/models"
)

type fakeAccounts struct {
	mu      sync.Mutex
	users   map[string]*models.User
	lookups int
	// visibleAfter delays visibility until the nth lookup, modelling the
	// replication window between signup and webhook delivery.
	visibleAfter int
	err          error
}

func (f *fakeAccounts) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	if f.lookups < f.visibleAfter {
		return nil, nil
	}
	return f.users[email], nil
}

type fakeLedger struct {
	mu        sync.Mutex
	balances  map[uuid.UUID]int64
	entries   map[uuid.UUID]bool
	processed map[string]bool
	ensureErr error
	creditErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances:  make(map[uuid.UUID]int64),
		entries:   make(map[uuid.UUID]bool),
		processed: make(map[string]bool),
	}
}

func (f *fakeLedger) EnsureEntry(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ensureErr != nil {
		return f.ensureErr
	}
	f.entries[userID] = true
	return nil
}

func (f *fakeLedger) Credit(ctx context.Context, userID uuid.UUID, eventID string, amount int64) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.creditErr != nil {
		return 0, false, f.creditErr
	}
	if !f.entries[userID] {
		return 0, false, fmt.Errorf("no ledger entry for %s", userID)
	}
	if f.processed[eventID] {
		return f.balances[userID], false, nil
	}
	f.processed[eventID] = true
	f.balances[userID] += amount
	return f.balances[userID], true, nil
}

func purchaseEvent(id, email string) *Event {
	evt := &Event{ID: id, Type: EventCheckoutCompleted}
	evt.Data.Object.CustomerDetails.Email = email
	return evt
}

func fastProcessor(accounts AccountStore, ledger LedgerStore) *Processor {
	return NewProcessor(accounts, ledger, nil, WithRetryPolicy(3, time.Millisecond))
}

func TestProcessIgnoresOtherEventKinds(t *testing.T) {
	accounts := &fakeAccounts{}
	ledger := newFakeLedger()
	p := fastProcessor(accounts, ledger)

	res, err := p.Process(context.Background(), &Event{ID: "evt_1", Type: "invoice.paid"})
	require.NoError(t, err)
	assert.False(t, res.Credited)
	assert.Zero(t, accounts.lookups, "no store access for ignored kinds")
	assert.Empty(t, ledger.processed)
}

func TestProcessRejectsMissingEmail(t *testing.T) {
	p := fastProcessor(&fakeAccounts{}, newFakeLedger())

	_, err := p.Process(context.Background(), &Event{ID: "evt_1", Type: EventCheckoutCompleted})
	assert.True(t, errors.Is(err, ErrMissingIdentity))
}

func TestProcessCreditsExistingAccount(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "new@example.com"}
	accounts := &fakeAccounts{users: map[string]*models.User{"new@example.com": user}}
	ledger := newFakeLedger()
	p := fastProcessor(accounts, ledger)

	res, err := p.Process(context.Background(), purchaseEvent("evt_1", "new@example.com"))
	require.NoError(t, err)
	assert.True(t, res.Credited)
	assert.Equal(t, int64(1), res.Balance)
	assert.True(t, ledger.entries[user.ID], "ledger entry ensured before credit")
}

func TestProcessLowercasesCustomerEmail(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "new@example.com"}
	accounts := &fakeAccounts{users: map[string]*models.User{"new@example.com": user}}
	p := fastProcessor(accounts, newFakeLedger())

	res, err := p.Process(context.Background(), purchaseEvent("evt_1", "New@Example.COM"))
	require.NoError(t, err)
	assert.True(t, res.Credited)
}

func TestProcessRetriesUntilAccountVisible(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "new@example.com"}

	for _, visibleAfter := range []int{2, 3} {
		accounts := &fakeAccounts{
			users:        map[string]*models.User{"new@example.com": user},
			visibleAfter: visibleAfter,
		}
		ledger := newFakeLedger()
		p := fastProcessor(accounts, ledger)

		res, err := p.Process(context.Background(), purchaseEvent("evt_1", "new@example.com"))
		require.NoError(t, err, "visible on attempt %d", visibleAfter)
		assert.True(t, res.Credited)
		assert.Equal(t, int64(1), res.Balance)
		assert.Equal(t, visibleAfter, accounts.lookups)
	}
}

func TestProcessFailsWhenAccountNeverVisible(t *testing.T) {
	accounts := &fakeAccounts{visibleAfter: 10}
	ledger := newFakeLedger()
	p := fastProcessor(accounts, ledger)

	_, err := p.Process(context.Background(), purchaseEvent("evt_1", "ghost@example.com"))
	assert.True(t, errors.Is(err, ErrAccountNotFound))
	assert.Equal(t, 3, accounts.lookups, "stops at the retry bound")
	assert.Empty(t, ledger.processed, "no ledger mutation on failure")
	assert.Empty(t, ledger.entries)
}

func TestProcessKeepsRetryingPastLookupErrors(t *testing.T) {
	accounts := &fakeAccounts{err: fmt.Errorf("connection reset")}
	p := fastProcessor(accounts, newFakeLedger())

	_, err := p.Process(context.Background(), purchaseEvent("evt_1", "new@example.com"))
	assert.True(t, errors.Is(err, ErrAccountNotFound))
	assert.Equal(t, 3, accounts.lookups)
}

func TestProcessFailsCleanlyOnCancelledContext(t *testing.T) {
	accounts := &fakeAccounts{visibleAfter: 10}
	ledger := newFakeLedger()
	p := NewProcessor(accounts, ledger, nil, WithRetryPolicy(3, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := p.Process(ctx, purchaseEvent("evt_1", "ghost@example.com"))
	assert.True(t, errors.Is(err, ErrAccountNotFound))
	assert.Less(t, time.Since(start), time.Second, "wait must not outlive the context")
	assert.Empty(t, ledger.processed)
}

func TestProcessCreatesLedgerEntryOnFirstCredit(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "new@example.com"}
	accounts := &fakeAccounts{users: map[string]*models.User{"new@example.com": user}}
	ledger := newFakeLedger()
	p := fastProcessor(accounts, ledger)

	res, err := p.Process(context.Background(), purchaseEvent("evt_1", "new@example.com"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Balance, "one entry with balance equal to the credit")
}

func TestProcessDuplicateDeliveryIsNoOp(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "new@example.com"}
	accounts := &fakeAccounts{users: map[string]*models.User{"new@example.com": user}}
	ledger := newFakeLedger()
	ledger.entries[user.ID] = true
	ledger.balances[user.ID] = 3
	p := fastProcessor(accounts, ledger)

	first, err := p.Process(context.Background(), purchaseEvent("evt_dup", "new@example.com"))
	require.NoError(t, err)
	assert.True(t, first.Credited)
	assert.Equal(t, int64(4), first.Balance)

	second, err := p.Process(context.Background(), purchaseEvent("evt_dup", "new@example.com"))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Credited)
	assert.Equal(t, int64(4), second.Balance, "redelivery must not double-credit")
}

func TestProcessReportsLedgerWriteFailures(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "new@example.com"}
	accounts := &fakeAccounts{users: map[string]*models.User{"new@example.com": user}}

	t.Run("ensure entry fails", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.ensureErr = fmt.Errorf("connection lost")
		p := fastProcessor(accounts, ledger)

		_, err := p.Process(context.Background(), purchaseEvent("evt_1", "new@example.com"))
		assert.True(t, errors.Is(err, ErrLedgerWrite))
	})

	t.Run("increment fails", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.creditErr = fmt.Errorf("connection lost")
		p := fastProcessor(accounts, ledger)

		_, err := p.Process(context.Background(), purchaseEvent("evt_2", "new@example.com"))
		assert.True(t, errors.Is(err, ErrLedgerWrite))
	})
}

func TestProcessConcurrentCreditsForSameAccount(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "new@example.com"}
	accounts := &fakeAccounts{users: map[string]*models.User{"new@example.com": user}}
	ledger := newFakeLedger()
	p := fastProcessor(accounts, ledger)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := p.Process(context.Background(), purchaseEvent(fmt.Sprintf("evt_%d", n), "new@example.com"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(5), ledger.balances[user.ID], "distinct events each credit once")
}
