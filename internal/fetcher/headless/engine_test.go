package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/dmfell/scholarscrape/internal/scholar"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{MaxParallel: -1}, nil, nil, nil, nil)
	require.Error(t, err)

	e, err := New(Config{MaxParallel: 2}, nil, nil, nil, nil)
	require.NoError(t, err)
	defer e.Close()
	require.Equal(t, 2, cap(e.limiter))
	require.Equal(t, defaultNavTimeout, e.cfg.NavTimeout)
	require.True(t, e.Available())
}

func TestJudgeFeedsBreaker(t *testing.T) {
	t.Parallel()

	breaker := scholar.NewBreaker(3, time.Minute, true)
	e, err := New(Config{}, nil, breaker, nil, nil)
	require.NoError(t, err)
	defer e.Close()

	err = e.judge(scholar.Page{StatusCode: http.StatusTooManyRequests})
	require.True(t, scholar.IsBlocked(err))
	require.Equal(t, scholar.BlockRateLimited, scholar.BlockKindOf(err))
	require.Equal(t, 1, breaker.Count())

	err = e.judge(scholar.Page{StatusCode: http.StatusOK, Body: []byte("please solve this CAPTCHA")})
	require.True(t, scholar.IsBlocked(err))
	require.Equal(t, scholar.BlockCaptcha, scholar.BlockKindOf(err))
	require.Equal(t, 2, breaker.Count())

	err = e.judge(scholar.Page{StatusCode: http.StatusBadGateway})
	require.Error(t, err)
	require.False(t, scholar.IsBlocked(err), "plain status failure is not a block")
	require.Equal(t, 2, breaker.Count())

	require.NoError(t, e.judge(scholar.Page{StatusCode: http.StatusOK, Body: []byte("<html>fine</html>")}))
}

func TestDocumentMetaCapture(t *testing.T) {
	t.Parallel()

	meta := newDocumentMeta()
	require.Equal(t, http.StatusOK, meta.statusOr(http.StatusOK))
	require.Equal(t, "https://fallback", meta.urlOr("https://fallback"))

	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeXHR,
		Response: &network.Response{Status: 500, URL: "https://xhr"},
	})
	require.Equal(t, http.StatusOK, meta.statusOr(http.StatusOK), "subresources must be ignored")

	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 429, URL: "https://doc"},
	})
	require.Equal(t, http.StatusTooManyRequests, meta.statusOr(http.StatusOK))
	require.Equal(t, "https://doc", meta.urlOr("https://fallback"))
}

func TestAcquireRespectsContext(t *testing.T) {
	t.Parallel()

	e, err := New(Config{MaxParallel: 1}, nil, nil, nil, nil)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.acquire(context.Background()))

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, e.acquire(canceled), "full limiter must respect cancellation")

	e.release()
	require.NoError(t, e.acquire(context.Background()))
	e.release()
}

func TestPace(t *testing.T) {
	t.Parallel()

	e, err := New(Config{}, rate.NewLimiter(rate.Every(time.Hour), 1), nil, nil, nil)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.pace(context.Background()), "burst allows the first call through")

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, e.pace(canceled), "drained limiter must respect cancellation")

	unpaced, err := New(Config{}, nil, nil, nil, nil)
	require.NoError(t, err)
	defer unpaced.Close()
	require.NoError(t, unpaced.pace(context.Background()))
}

func TestDisabledSource(t *testing.T) {
	t.Parallel()

	d := NewDisabled()
	require.False(t, d.Available())
	_, err := d.NewSession(context.Background())
	require.ErrorIs(t, err, ErrDisabled)
}
