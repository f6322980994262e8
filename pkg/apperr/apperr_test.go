package apperr_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/fastlink/pkg/apperr"
)

func TestStatusMapping(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.KindNotFound:            http.StatusNotFound,
		apperr.KindCodeMismatch:        http.StatusNotFound,
		apperr.KindGone:                http.StatusGone,
		apperr.KindRangeNotSatisfiable: http.StatusRequestedRangeNotSatisfiable,
		apperr.KindUpstreamTimeout:     http.StatusServiceUnavailable,
		apperr.KindUpstreamUnavailable: http.StatusServiceUnavailable,
		apperr.KindRateLimited:         http.StatusTooManyRequests,
		apperr.KindBadRequest:          http.StatusBadRequest,
		apperr.KindUnauthorized:        http.StatusUnauthorized,
		apperr.KindInternal:            http.StatusInternalServerError,
	}

	for kind, want := range cases {
		assert.Equal(t, want, apperr.StatusOf(kind), kind.String())
	}

	assert.Equal(t, http.StatusInternalServerError, apperr.Status(errors.New("plain")))
}

func TestCodeMismatchIndistinguishable(t *testing.T) {
	nf := apperr.Wrap(apperr.KindNotFound, errors.New("record missing"), "id abc")
	cm := apperr.New(apperr.KindCodeMismatch, "code differs")

	assert.Equal(t, apperr.Status(nf), apperr.Status(cm))
	assert.Equal(t, apperr.Public(nf), apperr.Public(cm))
}

func TestErrorsIs(t *testing.T) {
	err := fmt.Errorf("load: %w", apperr.Wrap(apperr.KindGone, errors.New("deleted"), "obj"))

	assert.ErrorIs(t, err, apperr.ErrGone)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, apperr.KindGone, apperr.KindOf(err))
}

func TestPublicHidesInternals(t *testing.T) {
	err := apperr.Wrap(apperr.KindUpstreamUnavailable, errors.New("dial tcp 10.0.0.3:9000: refused"), "s3")
	assert.NotContains(t, apperr.Public(err), "10.0.0.3")

	bad := apperr.New(apperr.KindBadRequest, "missing file id or code")
	assert.Equal(t, "missing file id or code", apperr.Public(bad))
}

func TestWriteEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	apperr.Write(c, apperr.ErrGone)

	require.Equal(t, http.StatusGone, w.Code)

	var env map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))

	assert.Equal(t, true, env["error"])
	assert.Equal(t, float64(http.StatusGone), env["code"])
	assert.NotEmpty(t, env["message"])

	ts, ok := env["timestamp"].(string)
	require.True(t, ok)

	_, err := time.Parse(time.RFC3339, ts)
	assert.NoError(t, err)
	assert.True(t, c.IsAborted())
}
