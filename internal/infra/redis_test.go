package infra

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestNewRedisPings(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedis(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("new redis: %v", err)
	}
	defer client.Close()

	addr := mr.Addr()
	mr.Close()
	if _, err := NewRedis(context.Background(), addr); err == nil {
		t.Fatalf("expected ping failure after server shutdown")
	}
}
