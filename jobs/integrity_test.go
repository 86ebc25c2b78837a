package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/bazaar-commerce/console/internal/jobs"
	"github.com/bazaar-commerce/console/internal/rolestore"
)

type staticLister struct {
	docs []rolestore.Document
	err  error
}

func (s staticLister) List(context.Context) ([]rolestore.Document, error) {
	return s.docs, s.err
}

func TestRoleIntegrityScanReportsInvalidAndDrift(t *testing.T) {
	lister := staticLister{docs: []rolestore.Document{
		{ID: "root", Email: "root@bazaar.test", Role: "super_admin"},
		{ID: "adm", Email: "ops@bazaar.test", Role: "admin", Permissions: []string{"orders", "legacy-reports"}},
		{ID: "x", Email: "owner@bazaar.test", Role: "owner"},
	}}
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	job := NewRoleIntegrityScanJob(lister, nil, metrics)

	report, err := job.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, []string{"owner@bazaar.test"}, report.Invalid)
	assert.Equal(t, map[string][]string{"ops@bazaar.test": {"legacy-reports"}}, report.Drifted)

	require.NoError(t, job.Handle(context.Background(), NewRoleIntegrityScanTask()))
	runs, err := testutil.GatherAndCount(reg, "console_jobs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
	findings, err := testutil.GatherAndCount(reg, "console_role_record_findings")
	require.NoError(t, err)
	assert.Equal(t, 2, findings)
}

func TestRoleIntegrityScanPropagatesStoreError(t *testing.T) {
	job := NewRoleIntegrityScanJob(staticLister{err: errors.New("db down")}, nil, nil)
	assert.Error(t, job.Handle(context.Background(), NewRoleIntegrityScanTask()))
}
