package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"doc-chat/internal/logger"
)

func dockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.Client().Ping(ctx)
	return err == nil
}

func startRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	if !dockerAvailable() {
		t.Skip("docker not available")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisStore(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	store, err := NewRedisStore(ctx, addr, "", time.Minute)
	require.NoError(t, err)
	defer store.Close()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := Session{ID: uuid.New(), State: StateNoDocument, CreatedAt: at, UpdatedAt: at}
	require.NoError(t, store.Create(ctx, s))
	assert.Error(t, store.Create(ctx, s))

	s.State = StateDocumentLoaded
	s.DocumentName = "report.pdf"
	s.Text = "page one"
	s.Log = newLog("Hi", at)
	s.Log.append(RoleUser, "", at)
	s.Log.append(RoleAssistant, "reply", at)
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Text, got.Text)
	assert.Equal(t, s.DocumentName, got.DocumentName)
	assert.Equal(t, s.Log.Entries(), got.Log.Entries())

	ttl, err := store.client.TTL(ctx, keyPrefix+s.ID.String()).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, store.Save(ctx, s), ErrSessionNotFound)
	assert.ErrorIs(t, store.Delete(ctx, s.ID), ErrSessionNotFound)
}

func TestRedisStoreWithController(t *testing.T) {
	addr := startRedis(t)
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	defer client.Close()

	c := NewController(NewRedisStoreFromClient(client, time.Minute), textExtractor, echoAnswerer(), nil, logger.Discard(), "")
	s := loadedSession(t, c, "shared text")
	s, err := c.Ask(context.Background(), s.ID, "q")
	require.NoError(t, err)

	// A second controller over the same redis sees the same conversation.
	other := NewController(NewRedisStoreFromClient(client, time.Minute), textExtractor, echoAnswerer(), nil, logger.Discard(), "")
	got, err := other.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Log.Entries(), got.Log.Entries())
}

func TestRedisLock(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()
	store, err := NewRedisStore(ctx, addr, "", time.Minute)
	require.NoError(t, err)
	defer store.Close()

	id := uuid.New()
	unlock, err := store.Lock(ctx, id)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = store.Lock(waitCtx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	exists, err := store.client.Exists(ctx, lockPrefix+id.String()).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	again, err := store.Lock(ctx, id)
	require.NoError(t, err)
	again()
}

func TestRedisControllersAreSerialized(t *testing.T) {
	addr := startRedis(t)
	slow := answerFunc(func(_ context.Context, question, _ string) string {
		time.Sleep(20 * time.Millisecond)
		return "re: " + question
	})

	// Separate clients stand in for separate replicas.
	var ctrls []*Controller
	for i := 0; i < 2; i++ {
		client := goredis.NewClient(&goredis.Options{Addr: addr})
		t.Cleanup(func() { _ = client.Close() })
		ctrls = append(ctrls, NewController(NewRedisStoreFromClient(client, time.Minute), textExtractor, slow, nil, logger.Discard(), ""))
	}
	s := loadedSession(t, ctrls[0], "shared text")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(c *Controller, i int) {
			defer wg.Done()
			_, err := c.Ask(context.Background(), s.ID, fmt.Sprintf("q%d", i))
			assert.NoError(t, err)
		}(ctrls[i%2], i)
	}
	wg.Wait()

	final, err := ctrls[1].Get(context.Background(), s.ID)
	require.NoError(t, err)
	entries := final.Log.Entries()
	require.Len(t, entries, 8)
	for i := 0; i < len(entries); i += 2 {
		assert.Equal(t, RoleUser, entries[i].Role)
		assert.Equal(t, "re: "+entries[i].Content, entries[i+1].Content)
	}
}
