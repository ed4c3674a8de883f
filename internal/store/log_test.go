package store_test

import (
	"fmt"
	"testing"

	"reqwatch/internal/store"
	"reqwatch/pkg/domain"
)

// memKV 测试用内存键值存储
type memKV struct {
	data map[string]string
}

func newMemKV() *memKV { return &memKV{data: make(map[string]string)} }

func (m *memKV) Get(key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Put(key, value string) error {
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(key string) error {
	delete(m.data, key)
	return nil
}

func rec(id string) domain.CaptureRecord {
	return domain.CaptureRecord{ID: id, Type: domain.ChannelFetch, Timestamp: "2026-08-25T10:00:00.000Z"}
}

// TestLog_FIFOBound 测试容量上限与先进先出淘汰
func TestLog_FIFOBound(t *testing.T) {
	l := store.NewLog(newMemKV(), "k", 2, nil)

	l.Append(rec("A"))
	l.Append(rec("B"))
	l.Append(rec("C"))

	got := l.Snapshot()
	if len(got) != 2 {
		t.Fatalf("记录数 got %d, want 2", len(got))
	}
	if got[0].ID != "B" || got[1].ID != "C" {
		t.Errorf("淘汰顺序错误: got [%s, %s], want [B, C]", got[0].ID, got[1].ID)
	}
}

// TestLog_BoundInvariant 测试任意插入序列后日志长度不超过容量
func TestLog_BoundInvariant(t *testing.T) {
	const max = 5
	l := store.NewLog(newMemKV(), "k", max, nil)

	for i := 0; i < 37; i++ {
		l.Append(rec(fmt.Sprintf("r%02d", i)))
		if l.Len() > max {
			t.Fatalf("第 %d 次插入后长度 %d 超过容量 %d", i, l.Len(), max)
		}
	}

	got := l.Snapshot()
	if len(got) != max {
		t.Fatalf("最终长度 got %d, want %d", len(got), max)
	}
	// 保留最近 N 条，最旧在前
	for i, r := range got {
		want := fmt.Sprintf("r%02d", 37-max+i)
		if r.ID != want {
			t.Errorf("位置 %d got %s, want %s", i, r.ID, want)
		}
	}
}

// TestLog_PersistenceRoundTrip 测试跨实例的持久化往返
func TestLog_PersistenceRoundTrip(t *testing.T) {
	kv := newMemKV()

	first := store.NewLog(kv, "captures", 10, nil)
	first.Append(rec("A"))
	first.Append(rec("B"))
	first.Append(rec("C"))

	// 新实例从同一存储键装载
	second := store.NewLog(kv, "captures", 10, nil)
	got := second.Snapshot()
	if len(got) != 3 {
		t.Fatalf("装载记录数 got %d, want 3", len(got))
	}
	for i, want := range []string{"A", "B", "C"} {
		if got[i].ID != want {
			t.Errorf("位置 %d got %s, want %s", i, got[i].ID, want)
		}
	}
}

// TestLog_CorruptedState 测试损坏的持久化数据按空日志处理
func TestLog_CorruptedState(t *testing.T) {
	kv := newMemKV()
	kv.data["captures"] = `{not-valid-json`

	l := store.NewLog(kv, "captures", 10, nil)
	if l.Len() != 0 {
		t.Errorf("损坏数据应装载为空日志, got %d 条", l.Len())
	}

	// 损坏状态不阻止后续写入
	l.Append(rec("A"))
	if l.Len() != 1 {
		t.Errorf("写入失败, got %d 条", l.Len())
	}
}

// TestLog_Clear 测试清空与持久化空状态
func TestLog_Clear(t *testing.T) {
	kv := newMemKV()
	l := store.NewLog(kv, "captures", 10, nil)
	l.Append(rec("A"))
	l.Clear()

	if l.Len() != 0 {
		t.Errorf("清空后长度应为 0, got %d", l.Len())
	}
	if kv.data["captures"] != "[]" {
		t.Errorf("清空后持久化状态应为空数组, got %s", kv.data["captures"])
	}
}

// TestLog_SnapshotIsCopy 测试快照是防御性副本
func TestLog_SnapshotIsCopy(t *testing.T) {
	l := store.NewLog(newMemKV(), "k", 10, nil)
	l.Append(rec("A"))

	snap := l.Snapshot()
	snap[0].ID = "mutated"

	if got := l.Snapshot(); got[0].ID != "A" {
		t.Errorf("修改快照影响了内部状态: %s", got[0].ID)
	}
}

// TestLog_SetCapacity 测试运行期收缩容量
func TestLog_SetCapacity(t *testing.T) {
	l := store.NewLog(newMemKV(), "k", 10, nil)
	for _, id := range []string{"A", "B", "C", "D"} {
		l.Append(rec(id))
	}

	l.SetCapacity(2)
	got := l.Snapshot()
	if len(got) != 2 || got[0].ID != "C" || got[1].ID != "D" {
		t.Errorf("收缩容量后应保留最近记录, got %v", got)
	}
}

// TestLog_LoadRespectsCapacity 测试装载时超出容量的历史被截断
func TestLog_LoadRespectsCapacity(t *testing.T) {
	kv := newMemKV()
	big := store.NewLog(kv, "captures", 10, nil)
	for i := 0; i < 10; i++ {
		big.Append(rec(fmt.Sprintf("r%d", i)))
	}

	small := store.NewLog(kv, "captures", 3, nil)
	got := small.Snapshot()
	if len(got) != 3 {
		t.Fatalf("装载后长度 got %d, want 3", len(got))
	}
	if got[0].ID != "r7" || got[2].ID != "r9" {
		t.Errorf("装载应保留最近 3 条, got %v", got)
	}
}
