package objstore

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"ttsched/pkg/api"
)

func BenchmarkDeclarePutGet_Parallel(b *testing.B) {
	s := New(Options{})
	origin := uuid.New()
	ctx := context.Background()
	var cnt atomic.Uint64
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			h := api.NewHandle(origin, cnt.Add(1))
			_ = s.Declare(h)
			_ = s.Put(h, 42)
			_, _ = s.Get(ctx, h)
		}
	})
}

func BenchmarkWaitResolved(b *testing.B) {
	s := New(Options{})
	origin := uuid.New()
	hs := make([]api.Handle, 16)
	for i := range hs {
		hs[i] = api.NewHandle(origin, uint64(i+1))
		_ = s.Declare(hs[i])
		_ = s.Put(hs[i], i)
	}
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = s.Wait(ctx, hs, len(hs), 0)
	}
}
