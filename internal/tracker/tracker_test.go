package tracker_test

import (
	"testing"
	"time"

	"reqwatch/internal/intercept"
	"reqwatch/internal/logger"
	"reqwatch/internal/tracker"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
	}{
		{"正常超时", 30 * time.Second},
		{"零超时使用默认值", 0},
		{"负超时使用默认值", -1 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := tracker.New(tt.timeout, logger.NewNop())
			defer tr.Stop()

			if tr == nil {
				t.Error("New() returned nil")
			}
		})
	}
}

func TestSetAndTake(t *testing.T) {
	tr := tracker.New(5*time.Second, logger.NewNop())
	defer tr.Stop()

	f := &intercept.Flight{}
	tr.Set("id1", f)

	got, ok := tr.Take("id1")
	if !ok {
		t.Fatal("Take() returned false")
	}
	if got != f {
		t.Error("取出的航程与存入的不一致")
	}

	// 第二次 Take 应失败（已被移除）
	if _, ok := tr.Take("id1"); ok {
		t.Error("Take() 后航程应已移除")
	}
}

func TestPeek(t *testing.T) {
	tr := tracker.New(5*time.Second, logger.NewNop())
	defer tr.Stop()

	f := &intercept.Flight{}
	tr.Set("id1", f)

	if _, ok := tr.Peek("id1"); !ok {
		t.Error("Peek() returned false")
	}
	// Peek 不移除
	if _, ok := tr.Peek("id1"); !ok {
		t.Error("Peek() 不应移除航程")
	}
}

func TestDelete(t *testing.T) {
	tr := tracker.New(5*time.Second, logger.NewNop())
	defer tr.Stop()

	tr.Set("id1", &intercept.Flight{})
	tr.Delete("id1")

	if _, ok := tr.Peek("id1"); ok {
		t.Error("Delete() 后航程仍然存在")
	}
}

func TestStop_Idempotent(t *testing.T) {
	tr := tracker.New(time.Second, logger.NewNop())
	tr.Stop()
	// 重复 Stop 不应 panic
	tr.Stop()
}
