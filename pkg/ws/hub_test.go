package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func runHub(t *testing.T, rdb *redis.Client) *Hub {
	t.Helper()

	hub := NewHub(zap.NewNop(), rdb)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func register(t *testing.T, hub *Hub, userID string) *Client {
	t.Helper()

	c := NewClient(hub, userID, nil)
	c.Register()
	require.Eventually(t, func() bool {
		return hub.UserClientCount(userID) > 0
	}, time.Second, 5*time.Millisecond)
	return c
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()

	select {
	case raw := <-c.send:
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return Message{}
	}
}

func TestBroadcastToUserOnlyReachesThatUser(t *testing.T) {
	hub := runHub(t, nil)
	a := register(t, hub, "a")
	b := register(t, hub, "b")

	hub.BroadcastToUser("a", MsgTypeLiveState, map[string]int{"elapsed_seconds": 12})

	msg := receive(t, a)
	assert.Equal(t, MsgTypeLiveState, msg.Type)
	assert.Equal(t, map[string]interface{}{"elapsed_seconds": float64(12)}, msg.Data)

	select {
	case <-b.send:
		t.Fatal("user b should not receive user a's state")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInitDataSentOnRegister(t *testing.T) {
	hub := runHub(t, nil)
	hub.SetInitDataProvider(func(userID string) interface{} {
		return map[string]string{"user_id": userID, "status": "idle"}
	})

	c := register(t, hub, "u1")
	msg := receive(t, c)
	assert.Equal(t, MsgTypeInit, msg.Type)
	assert.Equal(t, map[string]interface{}{"user_id": "u1", "status": "idle"}, msg.Data)
}

func TestInitDataProviderSwappedWhileRunning(t *testing.T) {
	hub := runHub(t, nil)
	first := register(t, hub, "u1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.SetInitDataProvider(func(userID string) interface{} {
			return map[string]string{"user_id": userID}
		})
	}()
	<-done

	second := register(t, hub, "u2")
	msg := receive(t, second)
	assert.Equal(t, MsgTypeInit, msg.Type)
	assert.Equal(t, map[string]interface{}{"user_id": "u2"}, msg.Data)

	select {
	case <-first.send:
		t.Fatal("client registered before the provider should not get init data")
	default:
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	hub := runHub(t, nil)
	c := register(t, hub, "u1")

	c.Unregister()
	_, ok := <-c.send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestRunStopClosesClients(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	c := register(t, hub, "u1")
	cancel()

	_, ok := <-c.send
	assert.False(t, ok)

	// Run 退出后注销不会阻塞
	c.Unregister()
}

func TestRedisRelayAcrossInstances(t *testing.T) {
	s := miniredis.RunT(t)
	rdbA := redis.NewClient(&redis.Options{Addr: s.Addr()})
	rdbB := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		rdbA.Close()
		rdbB.Close()
	})

	hubA := runHub(t, rdbA)
	hubB := runHub(t, rdbB)
	local := register(t, hubA, "u1")
	remote := register(t, hubB, "u1")

	// 等待订阅生效
	require.Eventually(t, func() bool {
		hubA.BroadcastToUser("u1", MsgTypeLiveState, "ping")
		select {
		case <-remote.send:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	// 本实例消息不会经 Redis 重复投递
	time.Sleep(50 * time.Millisecond)
	for len(local.send) > 0 {
		<-local.send
	}
	hubA.BroadcastToUser("u1", MsgTypeLiveState, "once")
	msg := receive(t, local)
	assert.Equal(t, "once", msg.Data)

	select {
	case raw := <-local.send:
		t.Fatalf("unexpected duplicate: %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}
