package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisc "github.com/geolens/engine/internal/pkg/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewService(redisc.Wrap(rdb))
}

func TestEnqueueDeduplicatesUnfinishedTasks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Enqueue(ctx, "prompt_run.batch", map[string]string{"domainId": "d1"}, "d1:chatgpt", "d1")
	require.NoError(t, err)
	assert.Equal(t, TaskPending, first.Status)

	again, err := svc.Enqueue(ctx, "prompt_run.batch", map[string]string{"domainId": "d1"}, "d1:chatgpt", "d1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other, err := svc.Enqueue(ctx, "prompt_run.batch", nil, "d1:claude", "d1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	require.NoError(t, svc.UpdateStatus(ctx, first.ID, TaskCompleted, map[string]int{"total": 3}, ""))

	next, err := svc.Enqueue(ctx, "prompt_run.batch", nil, "d1:chatgpt", "d1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, next.ID)

	done, err := svc.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, done.Status)
	assert.JSONEq(t, `{"total":3}`, string(done.Result))
}

func TestUpdateStatusUnknownTask(t *testing.T) {
	svc := newTestService(t)
	err := svc.UpdateStatus(context.Background(), "missing", TaskRunning, nil, "")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestListFiltersAndPages(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Enqueue(ctx, "prompt_run.batch", nil, "", "d1")
		require.NoError(t, err)
	}
	failed, err := svc.Enqueue(ctx, "prompt_run.batch", nil, "", "d2")
	require.NoError(t, err)
	require.NoError(t, svc.UpdateStatus(ctx, failed.ID, TaskFailed, nil, "boom"))

	tasks, total, err := svc.List(ctx, 1, 2, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, tasks, 2)

	status := TaskFailed
	tasks, total, err = svc.List(ctx, 1, 10, nil, &status)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "boom", tasks[0].Error)

	tasks, _, err = svc.List(ctx, 5, 10, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestDeleteFinished(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	done, err := svc.Enqueue(ctx, "prompt_run.batch", nil, "", "")
	require.NoError(t, err)
	require.NoError(t, svc.UpdateStatus(ctx, done.ID, TaskCompleted, nil, ""))
	running, err := svc.Enqueue(ctx, "prompt_run.batch", nil, "", "")
	require.NoError(t, err)
	require.NoError(t, svc.UpdateStatus(ctx, running.ID, TaskRunning, nil, ""))

	removed, err := svc.DeleteFinished(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	gone, err := svc.GetByID(ctx, done.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	still, err := svc.GetByID(ctx, running.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)
}
