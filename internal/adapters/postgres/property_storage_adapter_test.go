package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"crm-sync-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ручные фейки поверх pgx.Tx: записывают выполненные DELETE/INSERT и
// строки, ушедшие через CopyFrom, чтобы проверять замену дочерних
// коллекций без живой БД.

type execCall struct {
	sql  string
	args []any
}

type copyCall struct {
	table   string
	columns []string
	rows    [][]any
}

type fakeRow struct {
	scanFn func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scanFn(dest...) }

type fakeTx struct {
	pool *fakePool

	execs  []execCall
	copies []copyCall

	committed  bool
	rolledBack bool
}

func (t *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions are not supported")
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if t.pool.execErr != nil && strings.Contains(sql, t.pool.execErrOn) {
		return pgconn.CommandTag{}, t.pool.execErr
	}
	t.execs = append(t.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("OK"), nil
}

func (t *fakeTx) CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	name := strings.Join(table, ".")
	if t.pool.copyErr != nil && strings.Contains(name, t.pool.copyErrOn) {
		return 0, t.pool.copyErr
	}

	call := copyCall{table: name, columns: columns}
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return 0, err
		}
		call.rows = append(call.rows, vals)
	}
	t.copies = append(t.copies, call)
	return int64(len(call.rows)), nil
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.pool.coreRow
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (t *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                              { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *fakeTx) Conn() *pgx.Conn { return nil }

type fakePool struct {
	beginErr error

	// Exec/CopyFrom с совпадающим фрагментом возвращают ошибку
	execErrOn string
	execErr   error
	copyErrOn string
	copyErr   error

	coreRow fakeRow // ответ tx.QueryRow на upsert основной строки
	poolRow fakeRow // ответ pool.QueryRow (GetSyncInfo)

	txs []*fakeTx
}

func (p *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	tx := &fakeTx{pool: p}
	p.txs = append(p.txs, tx)
	return tx, nil
}

func (p *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.poolRow
}

// txWithExec находит транзакцию, выполнившую SQL с данным фрагментом.
func (p *fakePool) txWithExec(fragment string) *fakeTx {
	for _, tx := range p.txs {
		for _, e := range tx.execs {
			if strings.Contains(e.sql, fragment) {
				return tx
			}
		}
	}
	return nil
}

func (p *fakePool) allCopies() []copyCall {
	var all []copyCall
	for _, tx := range p.txs {
		all = append(all, tx.copies...)
	}
	return all
}

func coreRowReturning(localID uuid.UUID, created bool) fakeRow {
	return fakeRow{scanFn: func(dest ...any) error {
		*(dest[0].(*uuid.UUID)) = localID
		*(dest[1].(*bool)) = created
		return nil
	}}
}

func validProp(crmID int64) domain.UpstreamProperty {
	price := 75000.0
	return domain.UpstreamProperty{
		PropertyID: crmID,
		StatusID:   domain.PropertyStatusActive,
		Price:      &price,
		SendDate:   time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		UpdateDate: time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		Characteristics: []domain.UpstreamCharacteristic{
			{Key: domain.CharacteristicTitle, Value: "Дом у озера", LanguageID: 1},
		},
		Raw: []byte(`{"PropertyID": 1}`),
	}
}

func newAdapterForTest(t *testing.T, pool *fakePool) *PostgresPropertyAdapter {
	t.Helper()
	adapter, err := NewPostgresPropertyAdapter(pool)
	require.NoError(t, err)
	return adapter
}

var childTables = []string{
	"property_images",
	"property_characteristics",
	"property_partners",
	"property_distances",
	"property_parkings",
	"property_basements",
}

func TestUpsertFromUpstream_EmptyCollectionsWipeChildRows(t *testing.T) {
	localID := uuid.New()
	pool := &fakePool{coreRow: coreRowReturning(localID, false)}
	adapter := newAdapterForTest(t, pool)

	// Из коллекций заполнены только характеристики (заголовок),
	// остальные приходят пустыми
	prop := validProp(1)
	prop.Images = nil

	result, err := adapter.UpsertFromUpstream(context.Background(), &prop)
	require.NoError(t, err)
	assert.Equal(t, localID, result.LocalID)
	assert.False(t, result.Created)

	// Каждая дочерняя таблица зачищена в своей закоммиченной транзакции
	for _, table := range childTables {
		tx := pool.txWithExec("DELETE FROM " + table)
		require.NotNilf(t, tx, "expected DELETE for %s", table)
		assert.True(t, tx.committed, table)

		for _, e := range tx.execs {
			if strings.Contains(e.sql, "DELETE FROM "+table) {
				require.Len(t, e.args, 1)
				assert.Equal(t, localID, e.args[0])
			}
		}
	}

	// Пустые коллекции ничего не вставляют: единственный CopyFrom — характеристики
	copies := pool.allCopies()
	require.Len(t, copies, 1)
	assert.Equal(t, "property_characteristics", copies[0].table)
}

func TestUpsertFromUpstream_ImagesReplacedDeleteThenInsert(t *testing.T) {
	localID := uuid.New()
	pool := &fakePool{coreRow: coreRowReturning(localID, true)}
	adapter := newAdapterForTest(t, pool)

	prop := validProp(2)
	prop.Images = []domain.UpstreamImage{
		{SortOrder: 1, URL: "http://img/1", ThumbnailURL: "http://img/1t"},
		{SortOrder: 2, URL: "http://img/2", ThumbnailURL: "http://img/2t"},
	}

	result, err := adapter.UpsertFromUpstream(context.Background(), &prop)
	require.NoError(t, err)
	assert.True(t, result.Created)

	tx := pool.txWithExec("DELETE FROM property_images")
	require.NotNil(t, tx)
	require.Len(t, tx.copies, 1)
	assert.Equal(t, "property_images", tx.copies[0].table)
	require.Len(t, tx.copies[0].rows, 2)
	for _, row := range tx.copies[0].rows {
		assert.Equal(t, localID, row[0])
	}
	assert.True(t, tx.committed)
}

func TestUpsertFromUpstream_ChildFailureIsWarningNotFatal(t *testing.T) {
	localID := uuid.New()
	pool := &fakePool{
		coreRow:   coreRowReturning(localID, false),
		copyErrOn: "property_images",
		copyErr:   errors.New("disk full"),
	}
	adapter := newAdapterForTest(t, pool)

	prop := validProp(3)
	prop.Images = []domain.UpstreamImage{{SortOrder: 1, URL: "http://img/1"}}

	result, err := adapter.UpsertFromUpstream(context.Background(), &prop)

	// Провал одной коллекции — предупреждение, не ошибка
	require.NoError(t, err)
	assert.Equal(t, localID, result.LocalID)

	var imageWarning bool
	for _, w := range result.ChildWarnings {
		if strings.Contains(w, "images") {
			imageWarning = true
		}
	}
	assert.True(t, imageWarning, "expected a warning about the images collection")

	// Транзакция картинок откатилась, соседние коллекции дошли до коммита
	imagesTx := pool.txWithExec("DELETE FROM property_images")
	require.NotNil(t, imagesTx)
	assert.True(t, imagesTx.rolledBack)
	assert.False(t, imagesTx.committed)

	charsTx := pool.txWithExec("DELETE FROM property_characteristics")
	require.NotNil(t, charsTx)
	assert.True(t, charsTx.committed)
}

func TestUpsertFromUpstream_CoreRowFailureIsFatal(t *testing.T) {
	pool := &fakePool{coreRow: fakeRow{scanFn: func(dest ...any) error {
		return errors.New("deadlock detected")
	}}}
	adapter := newAdapterForTest(t, pool)

	prop := validProp(4)
	_, err := adapter.UpsertFromUpstream(context.Background(), &prop)

	var persistenceErr *domain.PersistenceError
	require.ErrorAs(t, err, &persistenceErr)

	// До дочерних коллекций дело не дошло
	for _, table := range childTables {
		assert.Nilf(t, pool.txWithExec("DELETE FROM "+table), "unexpected DELETE for %s", table)
	}
}

func TestUpsertFromUpstream_ValidationRejectsMissingPrice(t *testing.T) {
	pool := &fakePool{}
	adapter := newAdapterForTest(t, pool)

	prop := validProp(5)
	prop.Price = nil

	_, err := adapter.UpsertFromUpstream(context.Background(), &prop)

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Empty(t, pool.txs)
}

func TestGetSyncInfo_UnknownPropertyIsNil(t *testing.T) {
	pool := &fakePool{poolRow: fakeRow{scanFn: func(dest ...any) error {
		return pgx.ErrNoRows
	}}}
	adapter := newAdapterForTest(t, pool)

	info, err := adapter.GetSyncInfo(context.Background(), 12345)
	require.NoError(t, err)
	assert.Nil(t, info)
}
