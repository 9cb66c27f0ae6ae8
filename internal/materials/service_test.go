package materials

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/harborline-erp/harborline/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	materials map[int64]Material
	txs       map[int64]StockTransaction
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		materials: make(map[int64]Material),
		txs:       make(map[int64]StockTransaction),
	}
}

// WithTx serializes callers with a mutex, standing in for the row lock the
// real repository takes.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetMaterial(ctx context.Context, id int64) (Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.materials[id]
	if !ok {
		return Material{}, ErrMaterialNotFound
	}
	return m, nil
}

func (r *memoryRepo) ListMaterials(ctx context.Context, search string) ([]Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Material
	for _, m := range r.materials {
		out = append(out, m)
	}
	return out, nil
}

func (r *memoryRepo) ListTransactions(ctx context.Context, materialID int64) ([]StockTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StockTransaction
	for _, tx := range r.txs {
		if tx.MaterialID == materialID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetTransaction(ctx context.Context, id int64) (StockTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return StockTransaction{}, ErrTransactionNotFound
	}
	return tx, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) InsertMaterial(ctx context.Context, m Material) (int64, error) {
	t.repo.nextID++
	m.ID = t.repo.nextID
	t.repo.materials[m.ID] = m
	return m.ID, nil
}

func (t *memoryTx) UpdateMaterial(ctx context.Context, m Material) error {
	if _, ok := t.repo.materials[m.ID]; !ok {
		return ErrMaterialNotFound
	}
	t.repo.materials[m.ID] = m
	return nil
}

func (t *memoryTx) DeleteMaterial(ctx context.Context, id int64) error {
	if _, ok := t.repo.materials[id]; !ok {
		return ErrMaterialNotFound
	}
	delete(t.repo.materials, id)
	return nil
}

func (t *memoryTx) GetStockForUpdate(ctx context.Context, materialID int64) (int64, error) {
	m, ok := t.repo.materials[materialID]
	if !ok {
		return 0, ErrMaterialNotFound
	}
	return m.CurrentStock, nil
}

func (t *memoryTx) SetStock(ctx context.Context, materialID, stock int64) error {
	m, ok := t.repo.materials[materialID]
	if !ok {
		return ErrMaterialNotFound
	}
	m.CurrentStock = stock
	t.repo.materials[materialID] = m
	return nil
}

func (t *memoryTx) InsertTransaction(ctx context.Context, stx StockTransaction) (int64, error) {
	t.repo.nextID++
	stx.ID = t.repo.nextID
	t.repo.txs[stx.ID] = stx
	return stx.ID, nil
}

func (t *memoryTx) GetTransactionForUpdate(ctx context.Context, id int64) (StockTransaction, error) {
	stx, ok := t.repo.txs[id]
	if !ok {
		return StockTransaction{}, ErrTransactionNotFound
	}
	return stx, nil
}

func (t *memoryTx) DeleteTransaction(ctx context.Context, id int64) error {
	if _, ok := t.repo.txs[id]; !ok {
		return ErrTransactionNotFound
	}
	delete(t.repo.txs, id)
	return nil
}

func materialsCtx() context.Context {
	return shared.ContextWithActor(context.Background(), shared.Actor{
		ID: 5, Name: "storekeeper", Capabilities: []string{shared.CapMaterialsEdit},
	})
}

func TestCreateMaterialWithOpeningStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := materialsCtx()

	m, err := svc.CreateMaterial(ctx, CreateMaterialInput{
		Name:         "packing tape",
		Unit:         "roll",
		UnitPrice:    decimal.NewFromInt(2),
		InitialStock: 40,
	})
	require.NoError(t, err)
	require.EqualValues(t, 40, m.CurrentStock)

	txs, err := svc.ListTransactions(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, DirectionIn, txs[0].Direction)
	require.EqualValues(t, 40, txs[0].Quantity)
}

func TestApplyTransactionMovesStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := materialsCtx()

	m, err := svc.CreateMaterial(ctx, CreateMaterialInput{Name: "boxes", InitialStock: 10})
	require.NoError(t, err)

	_, err = svc.ApplyTransaction(ctx, ApplyTransactionInput{MaterialID: m.ID, Direction: DirectionOut, Quantity: 4})
	require.NoError(t, err)
	_, err = svc.ApplyTransaction(ctx, ApplyTransactionInput{MaterialID: m.ID, Direction: DirectionIn, Quantity: 6})
	require.NoError(t, err)

	got, err := svc.GetMaterial(ctx, m.ID)
	require.NoError(t, err)
	require.EqualValues(t, 12, got.CurrentStock)
}

func TestApplyTransactionCarriesRelatedOrder(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := materialsCtx()

	m, err := svc.CreateMaterial(ctx, CreateMaterialInput{Name: "cartons", InitialStock: 20})
	require.NoError(t, err)

	orderID := int64(42)
	stx, err := svc.ApplyTransaction(ctx, ApplyTransactionInput{
		MaterialID:     m.ID,
		Direction:      DirectionOut,
		Quantity:       5,
		RelatedOrderID: &orderID,
	})
	require.NoError(t, err)
	require.NotNil(t, stx.RelatedOrderID)
	require.EqualValues(t, 42, *stx.RelatedOrderID)

	// The reference survives the ledger round trip; the opening-stock
	// entry carries none.
	txs, err := svc.ListTransactions(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	var linked, unlinked int
	for _, tx := range txs {
		if tx.RelatedOrderID != nil {
			linked++
			require.EqualValues(t, 42, *tx.RelatedOrderID)
		} else {
			unlinked++
		}
	}
	require.Equal(t, 1, linked)
	require.Equal(t, 1, unlinked)
}

func TestApplyTransactionRejectsNegativeStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := materialsCtx()

	m, err := svc.CreateMaterial(ctx, CreateMaterialInput{Name: "labels", InitialStock: 3})
	require.NoError(t, err)

	_, err = svc.ApplyTransaction(ctx, ApplyTransactionInput{MaterialID: m.ID, Direction: DirectionOut, Quantity: 5})
	require.ErrorIs(t, err, shared.ErrConflict)

	// Rejection leaves both the counter and the ledger untouched.
	got, err := svc.GetMaterial(ctx, m.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, got.CurrentStock)
	txs, err := svc.ListTransactions(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
}

func TestApplyTransactionValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := materialsCtx()

	_, err := svc.ApplyTransaction(ctx, ApplyTransactionInput{MaterialID: 1, Direction: DirectionIn, Quantity: 0})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.ApplyTransaction(ctx, ApplyTransactionInput{MaterialID: 1, Direction: "sideways", Quantity: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.ApplyTransaction(ctx, ApplyTransactionInput{MaterialID: 99, Direction: DirectionIn, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestConcurrentOutboundCannotOverdraw(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := materialsCtx()

	m, err := svc.CreateMaterial(ctx, CreateMaterialInput{Name: "bubble wrap", InitialStock: 10})
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ApplyTransaction(ctx, ApplyTransactionInput{
				MaterialID: m.ID, Direction: DirectionOut, Quantity: 3,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, shared.ErrConflict)
		}
	}
	require.Equal(t, 3, succeeded, "only three withdrawals of 3 fit in a stock of 10")

	got, err := svc.GetMaterial(ctx, m.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.CurrentStock)
}

func TestReverseTransaction(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := materialsCtx()

	m, err := svc.CreateMaterial(ctx, CreateMaterialInput{Name: "twine", InitialStock: 5})
	require.NoError(t, err)
	out, err := svc.ApplyTransaction(ctx, ApplyTransactionInput{MaterialID: m.ID, Direction: DirectionOut, Quantity: 2})
	require.NoError(t, err)

	require.NoError(t, svc.ReverseTransaction(ctx, out.ID))
	got, err := svc.GetMaterial(ctx, m.ID)
	require.NoError(t, err)
	require.EqualValues(t, 5, got.CurrentStock)

	// Reversing the opening inbound entry would overdraw what remains once
	// stock has been consumed again.
	txs, err := svc.ListTransactions(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	_, err = svc.ApplyTransaction(ctx, ApplyTransactionInput{MaterialID: m.ID, Direction: DirectionOut, Quantity: 4})
	require.NoError(t, err)
	require.ErrorIs(t, svc.ReverseTransaction(ctx, txs[0].ID), shared.ErrConflict)
}

func TestMaterialsRequireCapability(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	_, err := svc.CreateMaterial(context.Background(), CreateMaterialInput{Name: "x"})
	require.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.ApplyTransaction(context.Background(), ApplyTransactionInput{MaterialID: 1, Direction: DirectionIn, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrForbidden)
}
