package monitoring

import (
	"context"

	"github.com/sells-group/vin-dashboard/internal/model"
	"github.com/sells-group/vin-dashboard/internal/store"
)

// mockRuns serves runs newest first, honoring the status filter and limit.
type mockRuns struct {
	runs []model.Run
	err  error
}

func (m *mockRuns) ListRuns(_ context.Context, f store.RunFilter) ([]model.Run, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []model.Run
	for _, r := range m.runs {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}
