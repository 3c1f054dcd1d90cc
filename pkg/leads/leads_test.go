package leads_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/de5chat/pkg/leads"
)

func newSQLiteStore(t *testing.T) *leads.SQLiteStore {
	t.Helper()
	s, err := leads.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "data", "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSubmissionNormalize(t *testing.T) {
	tests := []struct {
		name    string
		sub     leads.Submission
		missing []string
	}{
		{"valid", leads.Submission{Name: " Alice ", Email: "a@x.io", InquiryType: "investor"}, nil},
		{"free text inquiry", leads.Submission{Name: "Bob", Email: "not-an-email"}, nil},
		{"blank name", leads.Submission{Name: "   ", Email: "a@x.io"}, []string{"name"}},
		{"nothing", leads.Submission{}, []string{"name", "email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.sub.Normalize()
			if tt.missing == nil {
				require.NoError(t, err)
				assert.NotContains(t, got.Name, " ")
				return
			}
			var ve *leads.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.missing, ve.Fields)
		})
	}
}

func TestSQLiteStoreAddAndList(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	first, err := s.Add(ctx, leads.Submission{Name: "Alice", Email: "a@x.io", InquiryType: "investor"})
	require.NoError(t, err)
	second, err := s.Add(ctx, leads.Submission{Name: "Bob", Email: "b@y.io", InquiryType: "issuer"})
	require.NoError(t, err)
	assert.Greater(t, second, first)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alice", all[0].Name)
	assert.Equal(t, "investor", all[0].InquiryType)
	assert.Equal(t, "Bob", all[1].Name)
	assert.Equal(t, "issuer", all[1].InquiryType)
	assert.False(t, all[0].CreatedAt.IsZero())
}

func TestSQLiteStoreRejectsInvalid(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, leads.Submission{Email: "a@x.io"})
	var ve *leads.ValidationError
	assert.ErrorAs(t, err, &ve)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLiteStoreConcurrentAdds(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	const n = 100
	ids := make([]int64, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i], errs[i] = s.Add(ctx, leads.Submission{
				Name:        fmt.Sprintf("lead %d", i),
				Email:       fmt.Sprintf("lead%d@x.io", i),
				InquiryType: "investor",
			})
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[ids[i]], "duplicate id %d", ids[i])
		seen[ids[i]] = true
	}

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, n)
}

func TestSQLiteStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.db")
	ctx := context.Background()

	s, err := leads.NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	_, err = s.Add(ctx, leads.Submission{Name: "Alice", Email: "a@x.io"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = leads.NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	id, err := s.Add(ctx, leads.Submission{Name: "Bob", Email: "b@y.io"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
}

func TestPostgresStore(t *testing.T) {
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	s, err := leads.NewPostgresStore(ctx, connString)
	require.NoError(t, err)
	defer s.Close()

	first, err := s.Add(ctx, leads.Submission{Name: "Alice", Email: "a@x.io", InquiryType: "investor"})
	require.NoError(t, err)
	second, err := s.Add(ctx, leads.Submission{Name: "Bob", Email: "b@y.io", InquiryType: "issuer"})
	require.NoError(t, err)
	assert.Greater(t, second, first)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(all), 2)

	_, err = s.Add(ctx, leads.Submission{Name: "Carol"})
	var ve *leads.ValidationError
	assert.ErrorAs(t, err, &ve)
}
