package perf

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/bazaar-commerce/console/internal/access"
)

func guardFixtures() []struct {
	snap   access.Snapshot
	policy access.Policy
} {
	seller := &access.Record{ID: "seller-a", Email: "a@shop.test", Role: access.RoleSeller,
		Permissions: access.NewPermissionSet(access.PageSellerDashboard, access.PageSellerOrders)}
	admin := &access.Record{ID: "adm-1", Email: "ops@bazaar.test", Role: access.RoleAdmin,
		Permissions: access.NewPermissionSet(access.PageProducts, access.PageOrders)}
	principal := &access.Principal{UID: "u1", Email: "ops@bazaar.test"}
	return []struct {
		snap   access.Snapshot
		policy access.Policy
	}{
		{access.Snapshot{Principal: principal, Record: admin}, access.Policy{Surface: access.SurfaceAdmin, RequiredPermission: access.PageProducts}},
		{access.Snapshot{Principal: principal, Record: admin}, access.Policy{Surface: access.SurfaceAdmin, RequiredPermission: access.PageSettings}},
		{access.Snapshot{Principal: principal, Record: seller}, access.Policy{Surface: access.SurfaceSeller, RequiredPermission: access.PageSellerOrders, ResourceSellerID: "seller-a"}},
		{access.Snapshot{Principal: principal, Record: seller}, access.Policy{Surface: access.SurfaceSeller, ResourceSellerID: "seller-b"}},
		{access.Snapshot{Principal: principal, Record: seller}, access.Policy{Surface: access.SurfaceAdmin}},
		{access.Snapshot{}, access.Policy{Surface: access.SurfaceAdmin}},
	}
}

func TestGuardLatencyTargets(t *testing.T) {
	fixtures := guardFixtures()
	samples := make([]time.Duration, 0, 50)
	for batch := 0; batch < 50; batch++ {
		start := time.Now()
		for i := 0; i < 1000; i++ {
			f := fixtures[i%len(fixtures)]
			access.Evaluate(f.snap, f.policy)
		}
		samples = append(samples, time.Since(start))
	}

	threshold := 50 * time.Millisecond
	if p95 := percentile95(samples); p95 > threshold {
		t.Fatalf("guard latency regression: p95=%s per 1000 decisions threshold=%s", p95, threshold)
	}
}

func BenchmarkEvaluate(b *testing.B) {
	for _, f := range guardFixtures() {
		f := f
		name := fmt.Sprintf("%s/%s", f.policy.Surface, access.Evaluate(f.snap, f.policy).State)
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				access.Evaluate(f.snap, f.policy)
			}
		})
	}
}

func BenchmarkAccessiblePages(b *testing.B) {
	rec := &access.Record{ID: "adm-1", Role: access.RoleAdmin,
		Permissions: access.NewPermissionSet(access.PageProducts, access.PageOrders, access.PageCoupons, "retired-page")}
	for i := 0; i < b.N; i++ {
		access.AccessiblePages(rec)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
