package database

import (
	"context"
	"testing"
)

func TestConnectRedis_InvalidURL_ReturnsError(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "http://not-redis")
	if err == nil {
		t.Fatal("expected error for non-redis URL, got nil")
	}
}

func TestConnectRedis_Unreachable_ReturnsError(t *testing.T) {
	// 使われていないポートへの接続はPingで失敗する
	_, err := ConnectRedis(context.Background(), "redis://127.0.0.1:1/0")
	if err == nil {
		t.Fatal("expected error for unreachable redis, got nil")
	}
}
