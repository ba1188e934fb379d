package takarakuji

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
)

func testFetchConfig(baseURL string) *FetchConfig {
	return &FetchConfig{
		BaseURL:       baseURL,
		UserAgent:     "takarakuji-test",
		Timeout:       2 * time.Second,
		RetryAttempts: 2,
		RetryInterval: time.Millisecond,
	}
}

func newTestSource(t *testing.T, handler http.Handler) (*MizuhoSource, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewMizuhoSource(testFetchConfig(server.URL), nil, NewSilentLogger()), server
}

func shiftJIS(t *testing.T, text string) []byte {
	t.Helper()
	encoded, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)
	return encoded
}

func TestMizuhoSource_FetchSelectionCSV(t *testing.T) {
	var requestedPath atomic.Value
	source, server := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath.Store(r.URL.Path)
		w.Write(shiftJIS(t, loto6CSV))
	}))

	payload, sourceURL, err := source.FetchSelectionCSV(context.Background(), GameLoto6, 2078)
	require.NoError(t, err)

	assert.Equal(t, "/retail/takarakuji/loto/loto6/csv/A1022078.CSV", requestedPath.Load())
	assert.Equal(t, server.URL+"/retail/takarakuji/loto/loto6/csv/A1022078.CSV", sourceURL)

	// The Shift_JIS payload comes back as UTF-8.
	assert.Contains(t, string(payload), "第2078回ロト６")
	assert.Contains(t, string(payload), "ボーナス数字")
}

func TestMizuhoSource_FetchIndex(t *testing.T) {
	source, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/takarakuji/apl/txt/loto7/name.txt", r.URL.Path)
		w.Write([]byte("A1030639.CSV\r\nA1030638.CSV\r\n"))
	}))

	payload, _, err := source.FetchIndex(context.Background(), GameLoto7)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1030639.CSV"}, ParseIndexFilenames(payload, 1))
}

func TestMizuhoSource_FetchTraditionalCSV(t *testing.T) {
	source, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/retail/takarakuji/tsujyo/jumbo/csv/jumbo.csv", r.URL.Path)
		w.Write(shiftJIS(t, jumboCSV))
	}))

	payload, _, err := source.FetchTraditionalCSV(context.Background(), GameJumbo)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "年末ジャンボ宝くじ")
}

func TestMizuhoSource_GameFamilyGuards(t *testing.T) {
	source, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should reach the provider")
	}))

	ctx := context.Background()

	_, _, err := source.FetchIndex(ctx, GameJumbo)
	assert.ErrorIs(t, err, ErrInvalidGame)

	_, _, err = source.FetchSelectionCSV(ctx, GameJumbo, 1045)
	assert.ErrorIs(t, err, ErrInvalidGame)

	_, _, err = source.FetchSelectionCSV(ctx, GameLoto6, 0)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, _, err = source.FetchTraditionalCSV(ctx, GameLoto6)
	assert.ErrorIs(t, err, ErrInvalidGame)
}

// A provider stuck on HTTP 503 exhausts the retry budget and surfaces a
// network-class error.
func TestMizuhoSource_RetriesThenFailsOn503(t *testing.T) {
	var requests int64
	source, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, _, err := source.FetchSelectionCSV(context.Background(), GameLoto6, 2078)

	require.Error(t, err)
	assert.True(t, IsFetchError(err))
	assert.False(t, IsParseError(err))
	assert.EqualValues(t, 3, atomic.LoadInt64(&requests), "one attempt plus two retries")
}

func TestMizuhoSource_TransientFailureRecovers(t *testing.T) {
	var requests int64
	source, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&requests, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(shiftJIS(t, loto6CSV))
	}))

	payload, _, err := source.FetchSelectionCSV(context.Background(), GameLoto6, 2078)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "第2078回ロト６")
	assert.EqualValues(t, 3, atomic.LoadInt64(&requests))
}

func TestMizuhoSource_404IsNotFoundAndNotRetried(t *testing.T) {
	var requests int64
	source, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		http.NotFound(w, r)
	}))

	_, _, err := source.FetchSelectionCSV(context.Background(), GameLoto6, 9999)

	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))
	assert.EqualValues(t, 1, atomic.LoadInt64(&requests), "4xx responses are terminal")
}

func TestMizuhoSource_4xxIsTerminal(t *testing.T) {
	var requests int64
	source, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		w.WriteHeader(http.StatusForbidden)
	}))

	_, _, err := source.FetchSelectionCSV(context.Background(), GameLoto6, 2078)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchRejected)
	assert.True(t, IsFetchError(err))
	assert.EqualValues(t, 1, atomic.LoadInt64(&requests))
}

func TestMizuhoSource_EmptyBodyIsAFetchFailure(t *testing.T) {
	source, _ := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	_, _, err := source.FetchSelectionCSV(context.Background(), GameLoto6, 2078)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyPayload)
	assert.True(t, IsFetchError(err))
}

func TestMizuhoSource_ErrorsCarrySourceURL(t *testing.T) {
	source, server := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, sourceURL, err := source.FetchSelectionCSV(context.Background(), GameLoto6, 2078)
	require.Error(t, err)

	expected := server.URL + "/retail/takarakuji/loto/loto6/csv/A1022078.CSV"
	assert.Equal(t, expected, sourceURL)

	var lerr *LotteryError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, expected, lerr.SourceURL)
}

func TestDecodeProviderText(t *testing.T) {
	t.Run("utf8 passes through", func(t *testing.T) {
		decoded, err := decodeProviderText([]byte("第2078回ロト６"))
		require.NoError(t, err)
		assert.Equal(t, "第2078回ロト６", string(decoded))
	})

	t.Run("shift_jis is decoded", func(t *testing.T) {
		raw := shiftJIS(t, "ボーナス数字")
		require.False(t, string(raw) == "ボーナス数字", "fixture must actually be re-encoded")

		decoded, err := decodeProviderText(raw)
		require.NoError(t, err)
		assert.Equal(t, "ボーナス数字", string(decoded))
	})

	t.Run("binary junk is rejected", func(t *testing.T) {
		_, err := decodeProviderText([]byte{0x80, 0x81, 0xff, 0xfe, 0x80})
		assert.Error(t, err)
	})
}
