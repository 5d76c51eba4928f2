package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kpiboard/internal/core"
	"kpiboard/internal/sheets/memory"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Read(ctx context.Context, name string) (core.Table, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(core.Table), args.Error(1)
}

func (m *mockStore) Write(ctx context.Context, name string, t core.Table) error {
	args := m.Called(ctx, name, t)
	return args.Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) PublishTableChanged(ctx context.Context, table string, rows int) error {
	args := m.Called(ctx, table, rows)
	return args.Error(0)
}

func configTable() core.Table {
	return core.Table{
		Name:    core.ConfigTable,
		Columns: []string{"Category", "Metric", "Weight", "Target_Jan"},
		Rows: [][]any{
			{"Sales", "Leads", 40.0, 100.0},
			{"Sales", "Revenue", 60.0, 0.0},
		},
	}
}

func actualsTable() core.Table {
	return core.Table{
		Name:    core.ActualsTable,
		Columns: []string{"Metric", "Actual_Jan"},
		Rows: [][]any{
			{"Leads", 80.0},
			{"Revenue", 500.0},
		},
	}
}

func TestTableService_LoadUnknownTable(t *testing.T) {
	store := new(mockStore)
	svc := NewTableService(store, nil, nil)

	_, err := svc.Load(context.Background(), "Other")
	assert.ErrorIs(t, err, core.ErrUnknownTable)
	store.AssertNotCalled(t, "Read", mock.Anything, mock.Anything)
}

func TestTableService_LoadPropagatesTypedErrors(t *testing.T) {
	store := new(mockStore)
	store.On("Read", mock.Anything, core.ConfigTable).
		Return(core.Table{}, &core.ConnectionError{Op: "read", Table: core.ConfigTable, Err: errors.New("timeout")})

	svc := NewTableService(store, nil, nil)
	_, err := svc.Load(context.Background(), core.ConfigTable)

	assert.Equal(t, core.KindConnection, core.KindOf(err))
	store.AssertExpectations(t)
}

func TestTableService_SaveNormalizesAndNotifies(t *testing.T) {
	store := new(mockStore)
	notifier := new(mockNotifier)

	input := core.Table{
		Columns: []string{" Metric ", "Actual_Jan"},
		Rows: [][]any{
			{"Leads", 80.0},
			{"", nil},
			{"Calls"},
		},
	}
	want := core.Table{
		Name:    core.ActualsTable,
		Columns: []string{"Metric", "Actual_Jan"},
		Rows: [][]any{
			{"Leads", 80.0},
			{"Calls", nil},
		},
	}

	store.On("Write", mock.Anything, core.ActualsTable, want).Return(nil)
	notifier.On("PublishTableChanged", mock.Anything, core.ActualsTable, 2).Return(nil)

	svc := NewTableService(store, notifier, nil)
	saved, err := svc.Save(context.Background(), core.ActualsTable, input)

	require.NoError(t, err)
	assert.Equal(t, want, saved)
	store.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestTableService_SaveSucceedsWhenNotifyFails(t *testing.T) {
	store := new(mockStore)
	notifier := new(mockNotifier)
	store.On("Write", mock.Anything, core.ConfigTable, mock.Anything).Return(nil)
	notifier.On("PublishTableChanged", mock.Anything, core.ConfigTable, 2).Return(errors.New("circuit breaker is open"))

	svc := NewTableService(store, notifier, nil)
	_, err := svc.Save(context.Background(), core.ConfigTable, configTable())

	assert.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestTableService_SaveRejectsBadHeader(t *testing.T) {
	store := new(mockStore)
	svc := NewTableService(store, nil, nil)

	_, err := svc.Save(context.Background(), core.ConfigTable, core.Table{Columns: []string{"Metric", " Metric"}})
	assert.ErrorIs(t, err, core.ErrInvalidTable)

	_, err = svc.Save(context.Background(), core.ConfigTable, core.Table{})
	assert.ErrorIs(t, err, core.ErrEmptyHeader)

	store.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything)
}

func TestTableService_SaveWriteFailureSkipsNotify(t *testing.T) {
	store := new(mockStore)
	notifier := new(mockNotifier)
	store.On("Write", mock.Anything, core.ConfigTable, mock.Anything).
		Return(&core.ConnectionError{Op: "write", Table: core.ConfigTable, Err: errors.New("down")})

	svc := NewTableService(store, notifier, nil)
	_, err := svc.Save(context.Background(), core.ConfigTable, configTable())

	assert.ErrorIs(t, err, core.ErrConnection)
	notifier.AssertNotCalled(t, "PublishTableChanged", mock.Anything, mock.Anything, mock.Anything)
}

func TestReportService_Compute(t *testing.T) {
	store := memory.New(configTable(), actualsTable())
	svc := NewReportService(store, nil)

	report, err := svc.Compute(context.Background(), "Jan")
	require.NoError(t, err)

	require.Len(t, report.Detail, 2)
	assert.InDelta(t, 80.0, report.Detail[0].AchievementPct, 1e-9)
	assert.InDelta(t, 32.0, report.Detail[0].WeightedScore, 1e-9)
	assert.Equal(t, 0.0, report.Detail[1].AchievementPct)
	require.Len(t, report.Summary, 1)
	assert.InDelta(t, 32.0, report.Summary[0].TotalWeightedScore, 1e-9)
}

func TestReportService_InvalidPeriodSkipsReads(t *testing.T) {
	store := new(mockStore)
	svc := NewReportService(store, nil)

	_, err := svc.Compute(context.Background(), "January")
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)
	store.AssertNotCalled(t, "Read", mock.Anything, mock.Anything)
}

func TestReportService_ReadFailure(t *testing.T) {
	store := new(mockStore)
	store.On("Read", mock.Anything, core.ConfigTable).Return(configTable(), nil).Maybe()
	store.On("Read", mock.Anything, core.ActualsTable).Return(core.Table{}, &core.NotFoundError{Table: core.ActualsTable})

	svc := NewReportService(store, nil)
	_, err := svc.Compute(context.Background(), "Jan")

	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, core.ActualsTable, nf.Table)
}

func TestReportService_MissingColumn(t *testing.T) {
	actuals := actualsTable()
	actuals.Columns = []string{"Metric", "Actual_Feb"}
	svc := NewReportService(memory.New(configTable(), actuals), nil)

	_, err := svc.Compute(context.Background(), "Jan")
	var se *core.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Actual_Jan", se.Column)
}

type countingMirror struct {
	calls atomic.Int32
	err   error
}

func (c *countingMirror) MirrorAll(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestMirrorProcessor_RunsImmediatelyAndOnInterval(t *testing.T) {
	m := &countingMirror{err: errors.New("sheets down")}
	p := NewMirrorProcessor(m, MirrorProcessorConfig{Interval: 20 * time.Millisecond})

	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(context.Background()), "second start should fail")

	assert.Eventually(t, func() bool { return m.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))
	assert.False(t, p.IsRunning())
}

func TestMirrorProcessor_StopNotRunning(t *testing.T) {
	p := NewMirrorProcessor(&countingMirror{}, MirrorProcessorConfig{})
	assert.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, DefaultMirrorProcessorConfig().Interval, p.config.Interval)
}
