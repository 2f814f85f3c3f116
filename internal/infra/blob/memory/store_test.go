package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clinicdesk/internal/blob/core"
)

func put(t *testing.T, s *Store, key, body string) core.Info {
	t.Helper()
	info, err := s.Put(context.Background(), key, strings.NewReader(body), core.PutOptions{ContentType: "application/json"})
	require.NoError(t, err)
	return info
}

func TestMissingKeys(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.Head(ctx, "hms_data.json")
	require.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = s.Get(ctx, "hms_data.json")
	require.ErrorIs(t, err, core.ErrNotFound)
	ok, err := s.Delete(ctx, "hms_data.json")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutReplacesDocument(t *testing.T) {
	stamp := time.Date(2024, 1, 15, 9, 0, 0, 0, time.FixedZone("EST", -5*3600))
	s := New(WithClock(func() time.Time { return stamp }))

	first := put(t, s, "hms_data.json", `{"patients":[]}`)
	second := put(t, s, "hms_data.json", `{"patients":[{}]}`)
	require.NotEqual(t, first.ETag, second.ETag)
	require.Equal(t, stamp.UTC(), second.LastModified)

	info, rc, err := s.Get(context.Background(), "hms_data.json")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, `{"patients":[{}]}`, string(body))
	require.Equal(t, int64(len(body)), info.Size)
	require.Equal(t, "application/json", info.ContentType)
}

func TestMetadataIsCopied(t *testing.T) {
	s := New()
	meta := map[string]string{"source": "hms_data.json"}
	_, err := s.Put(context.Background(), "backups/a.json", bytes.NewReader([]byte("{}")), core.PutOptions{Metadata: meta})
	require.NoError(t, err)
	meta["source"] = "changed"

	info, err := s.Head(context.Background(), "backups/a.json")
	require.NoError(t, err)
	require.Equal(t, "hms_data.json", info.Metadata["source"])
	info.Metadata["source"] = "mutated"

	again, err := s.Head(context.Background(), "backups/a.json")
	require.NoError(t, err)
	require.Equal(t, "hms_data.json", again.Metadata["source"])
}

func TestListAndDelete(t *testing.T) {
	s := New()
	put(t, s, "hms_data.json", "{}")
	put(t, s, "backups/hms_data-20240115T100000Z.json", "{}")
	put(t, s, "backups/hms_data-20240115T090000Z.json", "{}")

	all, err := s.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	backups, err := s.List(context.Background(), "backups/")
	require.NoError(t, err)
	require.Len(t, backups, 2)
	require.Equal(t, "backups/hms_data-20240115T090000Z.json", backups[0].Key)

	ok, err := s.Delete(context.Background(), backups[0].Key)
	require.NoError(t, err)
	require.True(t, ok)
	backups, err = s.List(context.Background(), "backups/")
	require.NoError(t, err)
	require.Len(t, backups, 1)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestPutRejectsBadInput(t *testing.T) {
	s := New()
	require.Equal(t, core.DriverMemory, s.Driver())

	_, err := s.Put(context.Background(), " ", strings.NewReader(""), core.PutOptions{})
	require.Error(t, err)

	_, err = s.Put(context.Background(), "bad", failingReader{}, core.PutOptions{})
	require.ErrorContains(t, err, "disk gone")
	_, err = s.Head(context.Background(), "bad")
	require.ErrorIs(t, err, core.ErrNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Put(ctx, "late", strings.NewReader("{}"), core.PutOptions{})
	require.ErrorIs(t, err, context.Canceled)
}
